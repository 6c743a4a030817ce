// Package adapters holds the in-process backend handlers (bot, local
// inference and custom modules) and the registry that resolves them by name.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"ai-junction/internal/models"
)

// ErrCapabilityUnsupported is returned by an adapter for an operation it
// does not implement.
var ErrCapabilityUnsupported = errors.New("capability not supported by this module")

// ErrModuleNotFound is returned by Resolve for an unknown module name.
var ErrModuleNotFound = errors.New("module not registered")

// Adapter is a live backend handler. The dispatcher calls ProcessInput for
// bot backends, GenerateResponse for local inference and Execute for custom
// modules.
type Adapter interface {
	ProcessInput(ctx context.Context, req models.AnalyzedRequest) (any, error)
	GenerateResponse(ctx context.Context, req models.AnalyzedRequest) (any, error)
	Execute(ctx context.Context, req models.AnalyzedRequest) (any, error)
}

// Unimplemented can be embedded by adapters that support only some operations.
type Unimplemented struct{}

func (Unimplemented) ProcessInput(context.Context, models.AnalyzedRequest) (any, error) {
	return nil, ErrCapabilityUnsupported
}

func (Unimplemented) GenerateResponse(context.Context, models.AnalyzedRequest) (any, error) {
	return nil, ErrCapabilityUnsupported
}

func (Unimplemented) Execute(context.Context, models.AnalyzedRequest) (any, error) {
	return nil, ErrCapabilityUnsupported
}

// Factory builds an adapter for one registered backend.
type Factory func(ctx context.Context, d models.BackendDescriptor) (Adapter, error)

// Registry maps module names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds name to factory. Registering a name twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("module name is required")
	}
	if factory == nil {
		return fmt.Errorf("module %q: factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Resolve returns the factory bound to name.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return factory, nil
}

// Names lists registered modules, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
