package provider

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps backend names to factories and keeps what it built.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
	built     map[string]T
}

func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]Factory[T]),
		built:     make(map[string]T),
	}
}

// RegisterFactory makes name buildable. A second registration replaces the first.
func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered backend names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Create builds the named backend and keeps it for Get.
func (r *Registry[T]) Create(name string, settings Settings) (T, error) {
	var zero T
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("unknown backend %q (registered: %v)", name, r.Names())
	}

	b, err := factory(settings)
	if err != nil {
		return zero, fmt.Errorf("backend %s: %w", name, err)
	}
	r.mu.Lock()
	r.built[name] = b
	r.mu.Unlock()
	return b, nil
}

// Get returns a backend built earlier by Create or Build.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.built[name]
	return b, ok
}

// Build creates the named backends in order; the result is the fallback
// order. A name may appear once.
func (r *Registry[T]) Build(names []string, settings map[string]Settings) ([]T, error) {
	out := make([]T, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("backend %s listed twice", name)
		}
		seen[name] = true
		b, err := r.Create(name, settings[name])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
