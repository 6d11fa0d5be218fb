// Package malgo provides a miniaudio backend through malgo. It supports
// capture, playback and duplex streams on ALSA, WASAPI and CoreAudio.
package malgo

import (
	"runtime"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// ComponentMalgo identifies errors from this backend
const ComponentMalgo = "backend.malgo"

// DefaultDeviceCacheTTL is how long an enumerated device list is reused
const DefaultDeviceCacheTTL = 30 * time.Second

const devicesCacheKey = "devices"

// GetLogger returns the malgo backend logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("backend.malgo")
}

// Option configures a Backend.
type Option func(*Backend)

// WithDeviceCacheTTL sets how long device enumeration results are cached.
func WithDeviceCacheTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.cacheTTL = ttl }
}

// WithBackend forces a miniaudio backend instead of the platform default.
func WithBackend(backend malgo.Backend) Option {
	return func(b *Backend) { b.backend = backend; b.forced = true }
}

// Backend implements audiocore.Backend on top of a malgo context.
type Backend struct {
	backend  malgo.Backend
	forced   bool
	cacheTTL time.Duration

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	devices *cache.Cache
}

// New returns a malgo backend for the current platform.
func New(opts ...Option) *Backend {
	b := &Backend{cacheTTL: DefaultDeviceCacheTTL}
	for _, opt := range opts {
		opt(b)
	}
	// No janitor goroutine; expired entries are simply ignored by Get
	b.devices = cache.New(b.cacheTTL, 0)
	return b
}

func (b *Backend) Name() string { return "malgo" }

// Init creates the malgo context.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	backend := b.backend
	if !b.forced {
		var err error
		if backend, err = getBackendForPlatform(); err != nil {
			return err
		}
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryBackend).
			Context("backend", runtime.GOOS).
			Context("operation", "init_context").
			Build()
	}
	b.ctx = ctx
	b.devices.Flush()
	return nil
}

// Terminate releases the malgo context.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	b.devices.Flush()

	if err != nil {
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryBackend).
			Context("operation", "uninit_context").
			Build()
	}
	return nil
}

// Devices lists playback and capture devices, merging the two sides of
// devices that appear in both.
func (b *Backend) Devices() ([]audiocore.DeviceInfo, error) {
	set, err := b.deviceSet()
	if err != nil {
		return nil, err
	}
	return set.infos, nil
}

func (b *Backend) deviceSet() (*deviceSet, error) {
	if cached, ok := b.devices.Get(devicesCacheKey); ok {
		return cached.(*deviceSet), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil, errors.New(audiocore.ErrNotInitialized).
			Component(ComponentMalgo).
			Context("operation", "enumerate_devices").
			Build()
	}

	playback, err := b.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, enumerateError(err, "playback")
	}
	capture, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, enumerateError(err, "capture")
	}

	set := mergeDevices(toRaw(playback), toRaw(capture))
	b.devices.SetDefault(devicesCacheKey, set)

	GetLogger().Debug("enumerated audio devices",
		logger.Int("playback", len(playback)),
		logger.Int("capture", len(capture)),
		logger.Int("merged", len(set.infos)))

	return set, nil
}

func enumerateError(err error, kind string) error {
	return errors.New(err).
		Component(ComponentMalgo).
		Category(errors.CategoryAudioDevice).
		Context("operation", "enumerate_devices").
		Context("device_type", kind).
		Build()
}

// getBackendForPlatform returns the appropriate malgo backend for the current platform
func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system %s", runtime.GOOS).
			Component(ComponentMalgo).
			Category(errors.CategoryBackend).
			Context("os", runtime.GOOS).
			Build()
	}
}
