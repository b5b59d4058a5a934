// Package registry provides thread-safe registration and lookup of named
// storage backends.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/caskstore/cask/pkg/storage"
)

// Registry manages named storage backends and the default selection among
// them. It is safe for concurrent use.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.Register("archive", s3Backend)
//	reg.Register("scratch", localBackend)
//	reg.SetDefault("archive")
//
//	backend, _ := reg.Get("scratch")
type Registry struct {
	mu          sync.RWMutex
	backends    map[string]storage.Backend
	order       []string
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]storage.Backend),
	}
}

// Register adds a named backend. The first backend registered becomes the
// default until SetDefault overrides it. Returns an error if a backend
// with the same name already exists.
func (r *Registry) Register(name string, backend storage.Backend) error {
	if backend == nil {
		return fmt.Errorf("cannot register nil backend")
	}
	if name == "" {
		return fmt.Errorf("cannot register backend with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}

	r.backends[name] = backend
	r.order = append(r.order, name)
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (storage.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, exists := r.backends[name]
	if !exists {
		return nil, fmt.Errorf("backend %q not found", name)
	}
	return backend, nil
}

// Default returns the default backend.
func (r *Registry) Default() (storage.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		return nil, fmt.Errorf("no backends registered")
	}
	return r.backends[r.defaultName], nil
}

// SetDefault marks the named backend as the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[name]; !exists {
		return fmt.Errorf("backend %q not found", name)
	}
	r.defaultName = name
	return nil
}

// Names returns the registered backend names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// DefaultName returns the name of the default backend, or "" when the
// registry is empty.
func (r *Registry) DefaultName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Close releases every backend that holds a connection, in registration
// order, and returns the combined errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if closer, ok := r.backends[name].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing backend %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
