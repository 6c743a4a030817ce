// internal/registry/memory.go
package registry

import (
	"context"
	"sync"
	"time"

	"ai-junction/internal/models"
)

// MemoryStore is a process-local Store, used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.BackendDescriptor
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.BackendDescriptor),
	}
}

func (s *MemoryStore) Insert(_ context.Context, d models.BackendDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[d.ID]; exists {
		return ErrDuplicateID
	}
	s.records[d.ID] = cloneDescriptor(d)
	s.order = append(s.order, d.ID)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch models.DescriptorPatch) (models.BackendDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return models.BackendDescriptor{}, ErrNotFound
	}
	updated := patch.Apply(current)
	updated.UpdatedAt = time.Now().UTC()
	s.records[id] = updated
	return cloneDescriptor(updated), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.BackendDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BackendDescriptor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneDescriptor(s.records[id]))
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.BackendDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.records[id]
	if !ok {
		return models.BackendDescriptor{}, ErrNotFound
	}
	return cloneDescriptor(d), nil
}

// cloneDescriptor copies the config map so callers cannot mutate stored state.
func cloneDescriptor(d models.BackendDescriptor) models.BackendDescriptor {
	if d.ConnectionConfig == nil {
		return d
	}
	cfg := make(map[string]interface{}, len(d.ConnectionConfig))
	for k, v := range d.ConnectionConfig {
		cfg[k] = v
	}
	d.ConnectionConfig = cfg
	return d
}
