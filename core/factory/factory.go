package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned by Create for a name without factory.
var ErrUnknown = errors.New("unknown module type")

// Factory constructs an implementation of T from the configuration C.
type Factory[C, T any] func(C) (T, error)

// Registry stores factories keyed by module type.
type Registry[C, T any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[C, T]
}

// NewRegistry returns an empty factory registry.
func NewRegistry[C, T any]() *Registry[C, T] {
	return &Registry[C, T]{factories: make(map[string]Factory[C, T])}
}

// Register adds a factory for the given type name.
func (r *Registry[C, T]) Register(name string, f Factory[C, T]) error {
	if f == nil {
		return fmt.Errorf("factory nil for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("factory already registered for %s", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for package initialisation; it panics on error.
func (r *Registry[C, T]) MustRegister(name string, f Factory[C, T]) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Create instantiates the module registered under name.
func (r *Registry[C, T]) Create(name string, conf C) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w %s", ErrUnknown, name)
	}
	return f(conf)
}

// Names lists the registered type names in sorted order.
func (r *Registry[C, T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
