// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "ai-junction/internal/common/errors"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/models"

	"github.com/google/uuid"
)

// Registry is the set of backends the router can select from. It owns the
// durable store, keeps the cache coherent and tells evictors about removals.
type Registry struct {
	store  Store
	cache  Cache
	logger logger.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.RWMutex
	evictors []Evictor
}

func New(store Store, cache Cache, log logger.Logger) *Registry {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Registry{
		store:  store,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "registry"}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// AddEvictor registers e to be called synchronously on every successful Remove.
func (r *Registry) AddEvictor(e Evictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictors = append(r.evictors, e)
}

// Add validates and persists a new backend under a fresh id.
func (r *Registry) Add(ctx context.Context, in models.NewDescriptor) (models.BackendDescriptor, error) {
	now := r.now()
	d := models.BackendDescriptor{
		ID:               r.newID(),
		Name:             in.Name,
		Type:             in.Type,
		Description:      in.Description,
		PerformanceScore: in.PerformanceScore,
		ConnectionConfig: in.ConnectionConfig,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if d.ConnectionConfig == nil {
		d.ConnectionConfig = map[string]interface{}{}
	}

	if err := validateDescriptor(d); err != nil {
		return models.BackendDescriptor{}, apperrors.NewInvalidDescriptorError(err.Error())
	}

	if err := r.store.Insert(ctx, d); err != nil {
		r.logger.Error("failed to add AI", map[string]interface{}{"id": d.ID, "error": err.Error()})
		return models.BackendDescriptor{}, apperrors.NewRegistryUnavailableError("insert", err)
	}

	r.cache.Set(ctx, d)
	r.logger.Info("AI added successfully", map[string]interface{}{
		"id":   d.ID,
		"type": string(d.Type),
		"name": d.Name,
	})
	return d, nil
}

// Update merges patch into an existing backend. It never creates one, and it
// does not touch live dispatcher connections.
func (r *Registry) Update(ctx context.Context, id string, patch models.DescriptorPatch) (models.BackendDescriptor, error) {
	current, err := r.store.Get(ctx, id)
	if err != nil {
		return models.BackendDescriptor{}, r.storeError("get", id, err)
	}
	if patch.IsEmpty() {
		return current, nil
	}

	if err := validateDescriptor(patch.Apply(current)); err != nil {
		return models.BackendDescriptor{}, apperrors.NewInvalidDescriptorError(err.Error())
	}

	updated, err := r.store.Update(ctx, id, patch)
	if err != nil {
		return models.BackendDescriptor{}, r.storeError("update", id, err)
	}

	r.cache.Delete(ctx, id)
	r.logger.Info("AI updated successfully", map[string]interface{}{"id": id})
	return updated, nil
}

// Remove deletes a backend and evicts its live connection before returning.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return r.storeError("delete", id, err)
	}

	r.cache.Delete(ctx, id)

	r.mu.RLock()
	evictors := append([]Evictor(nil), r.evictors...)
	r.mu.RUnlock()
	for _, e := range evictors {
		e.Evict(id)
	}

	r.logger.Info("AI removed successfully", map[string]interface{}{"id": id})
	return nil
}

// List returns every backend in insertion order.
func (r *Registry) List(ctx context.Context) ([]models.BackendDescriptor, error) {
	descriptors, err := r.store.List(ctx)
	if err != nil {
		r.logger.Error("failed to list AIs", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewRegistryUnavailableError("list", err)
	}
	return descriptors, nil
}

// Get reads one backend through the cache.
func (r *Registry) Get(ctx context.Context, id string) (models.BackendDescriptor, error) {
	if d, ok := r.cache.Get(ctx, id); ok {
		return d, nil
	}

	d, err := r.store.Get(ctx, id)
	if err != nil {
		return models.BackendDescriptor{}, r.storeError("get", id, err)
	}
	r.cache.Set(ctx, d)
	return d, nil
}

func (r *Registry) storeError(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn("AI not found", map[string]interface{}{"id": id, "op": op})
		return apperrors.NewNotFoundError(id)
	}
	r.logger.Error("registry store failed", map[string]interface{}{"id": id, "op": op, "error": err.Error()})
	return apperrors.NewRegistryUnavailableError(op, err)
}
