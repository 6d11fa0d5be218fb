package config

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audiocore/backends/loopback"
	"github.com/tphakala/audiobridge/internal/audiocore/backends/malgo"
	"github.com/tphakala/audiobridge/internal/errors"
)

// BackendFactory creates an audio backend.
type BackendFactory func() audiocore.Backend

var (
	backendsMu sync.Mutex
	factories  = map[string]BackendFactory{
		"loopback": func() audiocore.Backend { return loopback.New() },
		"malgo":    func() audiocore.Backend { return malgo.New() },
	}
	// Engine refcounts are keyed by backend name, so every caller asking
	// for a name must share one instance.
	instances = make(map[string]audiocore.Backend)
)

// RegisterBackend makes a backend available by name. Registering a name
// twice replaces the factory but keeps an instance already handed out.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	factories[name] = factory
}

// AvailableBackends returns the names of the compiled-in backends.
func AvailableBackends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	return slices.Sorted(maps.Keys(factories))
}

// NewBackend returns the shared backend instance for name.
func NewBackend(name string) (audiocore.Backend, error) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if b, ok := instances[name]; ok {
		return b, nil
	}
	factory, ok := factories[name]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: backend %q is not available in this build", audiocore.ErrInvalidConfig, name)).
			Component(ComponentConfig).
			Category(errors.CategoryConfiguration).
			Context("backend", name).
			Context("available", slices.Sorted(maps.Keys(factories))).
			Build()
	}
	b := factory()
	instances[name] = b
	return b, nil
}
