// Package loopback is a pure-Go audio backend. Its devices are driven by a
// ticker goroutine instead of sound hardware: the loopback device feeds each
// period's output back as the next period's input and the null device
// discards output and captures silence.
package loopback

import (
	"sync"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// ComponentLoopback identifies errors from this backend
const ComponentLoopback = "backend.loopback"

// Device IDs
const (
	DeviceLoopback = "loopback"
	DeviceNull     = "null"
)

const maxChannels = audiocore.MaxChannels

// ErrNotInitialized is returned when a stream is opened before Init.
var ErrNotInitialized = errors.New(errors.NewStd("loopback backend not initialized")).
	Component(ComponentLoopback).
	Category(errors.CategoryState).
	Build()

// Option configures a Backend.
type Option func(*Backend)

// WithName overrides the backend name. Engine reference counts are kept per
// name, so distinct names give independent lifecycles.
func WithName(name string) Option {
	return func(b *Backend) { b.name = name }
}

// WithPeriod fixes the callback period instead of deriving it from the
// stream's frames per buffer and sample rate.
func WithPeriod(d time.Duration) Option {
	return func(b *Backend) { b.period = d }
}

// Backend implements audiocore.Backend.
type Backend struct {
	name   string
	period time.Duration

	mu          sync.Mutex
	initialized bool
	inits       int
	terminates  int
}

// New returns a loopback backend.
func New(opts ...Option) *Backend {
	b := &Backend{name: "loopback"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = true
	b.inits++
	return nil
}

func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
	b.terminates++
	return nil
}

// Lifecycle returns how many times Init and Terminate have run.
func (b *Backend) Lifecycle() (inits, terminates int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inits, b.terminates
}

// Devices lists the loopback and null devices.
func (b *Backend) Devices() ([]audiocore.DeviceInfo, error) {
	return []audiocore.DeviceInfo{
		{
			Index:             0,
			ID:                DeviceLoopback,
			Name:              "Loopback",
			MaxInputChannels:  maxChannels,
			MaxOutputChannels: maxChannels,
			DefaultSampleRate: audiocore.DefaultSampleRate,
			IsDefault:         true,
		},
		{
			Index:             1,
			ID:                DeviceNull,
			Name:              "Null Device",
			MaxInputChannels:  maxChannels,
			MaxOutputChannels: maxChannels,
			DefaultSampleRate: audiocore.DefaultSampleRate,
		},
	}, nil
}

// OpenStream opens a stopped stream on the loopback or null device.
func (b *Backend) OpenStream(cfg audiocore.NativeConfig, cb audiocore.HostCallback) (audiocore.NativeStream, error) {
	b.mu.Lock()
	initialized := b.initialized
	b.mu.Unlock()
	if !initialized {
		return nil, ErrNotInitialized
	}

	bps := cfg.Format.BytesPerSample()
	if bps == 0 || cfg.FramesPerBuffer <= 0 || cfg.SampleRate <= 0 {
		return nil, errors.Newf("loopback: unsupported stream parameters").
			Component(ComponentLoopback).
			Category(errors.CategoryValidation).
			Context("format", cfg.Format.String()).
			Context("frames_per_buffer", cfg.FramesPerBuffer).
			Context("sample_rate", cfg.SampleRate).
			Build()
	}

	period := b.period
	if period <= 0 {
		period = time.Duration(cfg.FramesPerBuffer) * time.Second / time.Duration(cfg.SampleRate)
	}

	s := &stream{
		cb:       cb,
		frames:   cfg.FramesPerBuffer,
		bps:      bps,
		inChans:  cfg.InputChannels,
		outChans: cfg.OutputChannels,
		loop:     cfg.Device.ID != DeviceNull,
		period:   period,
		in:       make([]byte, cfg.FramesPerBuffer*cfg.InputChannels*bps),
		out:      make([]byte, cfg.FramesPerBuffer*cfg.OutputChannels*bps),
		log: GetLogger().With(
			logger.String("device", cfg.Device.ID),
			logger.Int("frames_per_buffer", cfg.FramesPerBuffer)),
	}
	s.fillInputSilence(cfg.Format)
	return s, nil
}

// GetLogger returns the loopback backend logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("backend.loopback")
}
