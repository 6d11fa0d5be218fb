package malgo

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// OpenStream initializes a stopped miniaudio device for cfg.
func (b *Backend) OpenStream(cfg audiocore.NativeConfig, cb audiocore.HostCallback) (audiocore.NativeStream, error) {
	format, err := toMalgoFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	set, err := b.deviceSet()
	if err != nil {
		return nil, err
	}

	var deviceType malgo.DeviceType
	switch {
	case cfg.InputChannels > 0 && cfg.OutputChannels > 0:
		deviceType = malgo.Duplex
	case cfg.OutputChannels > 0:
		deviceType = malgo.Playback
	default:
		deviceType = malgo.Capture
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.OutputChannels > 0 {
		id, ok := set.playback[cfg.Device.ID]
		if !ok {
			return nil, directionError(cfg.Device, "playback")
		}
		deviceConfig.Playback.Format = format
		deviceConfig.Playback.Channels = uint32(cfg.OutputChannels)
		deviceConfig.Playback.DeviceID = id.Pointer()
	}
	if cfg.InputChannels > 0 {
		id, ok := set.capture[cfg.Device.ID]
		if !ok {
			return nil, directionError(cfg.Device, "capture")
		}
		deviceConfig.Capture.Format = format
		deviceConfig.Capture.Channels = uint32(cfg.InputChannels)
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	s := &stream{
		log: GetLogger().With(
			logger.String("device", cfg.Device.Name),
			logger.String("format", cfg.Format.String())),
	}

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		return nil, errors.New(audiocore.ErrNotInitialized).
			Component(ComponentMalgo).
			Context("operation", "init_device").
			Build()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(out, in []byte, frames uint32) {
			cb(out, in, frames, audiocore.CallbackInfo{})
		},
		Stop: s.onDeviceStop,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryBackend).
			Context("device_name", cfg.Device.Name).
			Context("operation", "init_device").
			Build()
	}
	s.device = device

	if rate := device.SampleRate(); rate != uint32(cfg.SampleRate) {
		s.log.Warn("device runs at a different sample rate, miniaudio will resample",
			logger.Int("requested", cfg.SampleRate),
			logger.Int("actual", int(rate)))
	}

	return s, nil
}

// stream wraps an initialized malgo device.
type stream struct {
	mu       sync.Mutex
	device   *malgo.Device
	stopping atomic.Bool
	log      logger.Logger
}

func (s *stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return audiocore.ErrInvalidState
	}
	s.stopping.Store(false)
	if err := s.device.Start(); err != nil {
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryBackend).
			Context("operation", "start_device").
			Build()
	}
	return nil
}

// Stop blocks until miniaudio has returned from the data callback.
func (s *stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil || !s.device.IsStarted() {
		return nil
	}
	s.stopping.Store(true)
	if err := s.device.Stop(); err != nil {
		return errors.New(err).
			Component(ComponentMalgo).
			Category(errors.CategoryBackend).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}

func (s *stream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	return nil
}

// onDeviceStop is called when the device stops, requested or not
func (s *stream) onDeviceStop() {
	if !s.stopping.Load() {
		s.log.Warn("audio device stopped unexpectedly")
	}
}

func directionError(device audiocore.DeviceInfo, direction string) error {
	return errors.New(audiocore.ErrDirectionUnavailable).
		Component(ComponentMalgo).
		Category(errors.CategoryAudioDevice).
		Context("device_name", device.Name).
		Context("direction", direction).
		Build()
}

// toMalgoFormat maps a sample format to miniaudio's. miniaudio has no
// signed 8-bit format.
func toMalgoFormat(f audiocore.SampleFormat) (malgo.FormatType, error) {
	switch f {
	case audiocore.FormatF32:
		return malgo.FormatF32, nil
	case audiocore.FormatS32:
		return malgo.FormatS32, nil
	case audiocore.FormatS16:
		return malgo.FormatS16, nil
	case audiocore.FormatU8:
		return malgo.FormatU8, nil
	}
	return malgo.FormatUnknown, errors.Newf("sample format %s not supported by miniaudio", f).
		Component(ComponentMalgo).
		Category(errors.CategoryValidation).
		Context("format", f.String()).
		Build()
}
