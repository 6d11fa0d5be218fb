package audiocore

import (
	"sync"

	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// Backend is a native audio engine. Init and Terminate are called by the
// refcounted Initialize and Shutdown, never directly by streams.
type Backend interface {
	Name() string
	Init() error
	Terminate() error
	Devices() ([]DeviceInfo, error)

	// OpenStream opens a stopped native stream that calls cb on the
	// engine's real-time thread once started.
	OpenStream(cfg NativeConfig, cb HostCallback) (NativeStream, error)
}

// NativeStream is a stream opened by a Backend.
type NativeStream interface {
	Start() error
	// Stop blocks until the callback is no longer running.
	Stop() error
	Close() error
}

var (
	engineMu   sync.Mutex
	engineRefs = make(map[string]int)
)

// Initialize takes a reference on backend, initializing it on the first
// reference. Every successful call must be paired with Shutdown.
func Initialize(b Backend) error {
	engineMu.Lock()
	defer engineMu.Unlock()

	name := b.Name()
	if engineRefs[name] == 0 {
		if err := b.Init(); err != nil {
			return errors.New(err).
				Component(ComponentAudioCore).
				Category(errors.CategoryBackend).
				Context("backend", name).
				Context("operation", "initialize").
				Build()
		}
		GetLogger().Debug("audio backend initialized", logger.String("backend", name))
	}
	engineRefs[name]++
	return nil
}

// Shutdown releases a reference taken by Initialize and terminates the
// backend when the last reference goes away.
func Shutdown(b Backend) error {
	engineMu.Lock()
	defer engineMu.Unlock()

	name := b.Name()
	refs := engineRefs[name]
	if refs == 0 {
		return errors.New(ErrNotInitialized).
			Component(ComponentAudioCore).
			Context("backend", name).
			Build()
	}
	if refs > 1 {
		engineRefs[name] = refs - 1
		return nil
	}

	delete(engineRefs, name)
	if err := b.Terminate(); err != nil {
		return errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryBackend).
			Context("backend", name).
			Context("operation", "terminate").
			Build()
	}
	GetLogger().Debug("audio backend terminated", logger.String("backend", name))
	return nil
}

// RefCount returns the number of outstanding references on a backend.
func RefCount(b Backend) int {
	engineMu.Lock()
	defer engineMu.Unlock()
	return engineRefs[b.Name()]
}
