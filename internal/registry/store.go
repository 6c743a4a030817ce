// internal/registry/store.go
package registry

import (
	"context"
	"errors"

	"ai-junction/internal/models"
)

var (
	// ErrNotFound is returned by a Store when no record has the given id.
	ErrNotFound = errors.New("backend not found")
	// ErrDuplicateID is returned by Insert for an id already present.
	ErrDuplicateID = errors.New("backend id already exists")
)

// Store is the durable descriptor set. Each method is atomic.
type Store interface {
	Insert(ctx context.Context, d models.BackendDescriptor) error
	// Update merges the patch into the stored record and returns the result.
	Update(ctx context.Context, id string, patch models.DescriptorPatch) (models.BackendDescriptor, error)
	Delete(ctx context.Context, id string) error
	// List returns every record in insertion order.
	List(ctx context.Context) ([]models.BackendDescriptor, error)
	Get(ctx context.Context, id string) (models.BackendDescriptor, error)
}

// Evictor is notified when a backend is removed from the registry.
type Evictor interface {
	Evict(id string)
}

// EvictorFunc adapts a function to Evictor.
type EvictorFunc func(id string)

func (f EvictorFunc) Evict(id string) { f(id) }
