//go:build portaudio

// Package portaudio provides a PortAudio backend. It needs the PortAudio C
// library and is only built with the portaudio build tag.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

// ComponentPortAudio identifies errors from this backend
const ComponentPortAudio = "backend.portaudio"

// GetLogger returns the portaudio backend logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("backend.portaudio")
}

// Backend implements audiocore.Backend with PortAudio's callback API.
type Backend struct{}

// New returns a PortAudio backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "portaudio" }

func (b *Backend) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return backendError(err, "initialize")
	}
	GetLogger().Debug("portaudio initialized", logger.String("version", portaudio.VersionText()))
	return nil
}

func (b *Backend) Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return backendError(err, "terminate")
	}
	return nil
}

// Devices lists every PortAudio device across host APIs.
func (b *Backend) Devices() ([]audiocore.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, backendError(err, "enumerate_devices")
	}

	defaultIn, defaultOut := -1, -1
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		defaultOut = d.Index
	}
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defaultIn = d.Index
	}

	infos := make([]audiocore.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, audiocore.DeviceInfo{
			Index:             d.Index,
			ID:                deviceID(d),
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			// The default output device wins when both exist
			IsDefault: d.Index == defaultOut || (defaultOut < 0 && d.Index == defaultIn),
		})
	}
	return infos, nil
}

// OpenStream opens a callback stream on the device with cfg.Device.Index.
func (b *Backend) OpenStream(cfg audiocore.NativeConfig, cb audiocore.HostCallback) (audiocore.NativeStream, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, backendError(err, "enumerate_devices")
	}
	var device *portaudio.DeviceInfo
	for _, d := range devices {
		if d.Index == cfg.Device.Index {
			device = d
			break
		}
	}
	if device == nil {
		return nil, errors.New(audiocore.ErrDeviceNotFound).
			Component(ComponentPortAudio).
			Context("device_index", cfg.Device.Index).
			Build()
	}

	params := portaudio.StreamParameters{
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	if cfg.InputChannels > 0 {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.InputChannels,
			Latency:  device.DefaultLowInputLatency,
		}
	}
	if cfg.OutputChannels > 0 {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.OutputChannels,
			Latency:  device.DefaultLowOutputLatency,
		}
	}

	var fn any
	switch cfg.Format {
	case audiocore.FormatF32:
		fn = typedCallback[float32](cb, cfg)
	case audiocore.FormatS32:
		fn = typedCallback[int32](cb, cfg)
	case audiocore.FormatS16:
		fn = typedCallback[int16](cb, cfg)
	case audiocore.FormatS8:
		fn = typedCallback[int8](cb, cfg)
	case audiocore.FormatU8:
		fn = typedCallback[uint8](cb, cfg)
	default:
		return nil, errors.Newf("sample format %s not supported by portaudio", cfg.Format).
			Component(ComponentPortAudio).
			Category(errors.CategoryValidation).
			Build()
	}

	s, err := portaudio.OpenStream(params, fn)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentPortAudio).
			Category(errors.CategoryBackend).
			Context("device_name", device.Name).
			Context("operation", "open_stream").
			Build()
	}
	return &stream{s: s}, nil
}

// typedCallback adapts a byte HostCallback to the typed callback PortAudio
// dispatches on.
func typedCallback[T audiocore.Sample](cb audiocore.HostCallback, cfg audiocore.NativeConfig) func([]T, []T, portaudio.StreamCallbackTimeInfo, portaudio.StreamCallbackFlags) {
	return func(in, out []T, ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		frames := 0
		switch {
		case cfg.OutputChannels > 0:
			frames = len(out) / cfg.OutputChannels
		case cfg.InputChannels > 0:
			frames = len(in) / cfg.InputChannels
		}
		cb(audiocore.SamplesAsBytes(out), audiocore.SamplesAsBytes(in), uint32(frames), callbackInfo(ti, flags))
	}
}

func callbackInfo(ti portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) audiocore.CallbackInfo {
	info := audiocore.CallbackInfo{
		InputTime:   ti.InputBufferAdcTime,
		OutputTime:  ti.OutputBufferDacTime,
		CurrentTime: ti.CurrentTime,
	}
	mapping := [...]struct {
		pa   portaudio.StreamCallbackFlags
		core audiocore.StatusFlags
	}{
		{portaudio.InputUnderflow, audiocore.InputUnderflow},
		{portaudio.InputOverflow, audiocore.InputOverflow},
		{portaudio.OutputUnderflow, audiocore.OutputUnderflow},
		{portaudio.OutputOverflow, audiocore.OutputOverflow},
		{portaudio.PrimingOutput, audiocore.PrimingOutput},
	}
	for _, m := range mapping {
		if flags&m.pa != 0 {
			info.Flags |= m.core
		}
	}
	return info
}

type stream struct {
	s       *portaudio.Stream
	started bool
}

func (s *stream) Start() error {
	if err := s.s.Start(); err != nil {
		return backendError(err, "start_stream")
	}
	s.started = true
	return nil
}

// Stop waits for pending buffers to play and the callback to return.
func (s *stream) Stop() error {
	if !s.started {
		return nil
	}
	s.started = false
	if err := s.s.Stop(); err != nil {
		return backendError(err, "stop_stream")
	}
	return nil
}

func (s *stream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	if err := s.s.Close(); err != nil {
		return backendError(err, "close_stream")
	}
	return nil
}

func deviceID(d *portaudio.DeviceInfo) string {
	if d.HostApi == nil {
		return d.Name
	}
	return fmt.Sprintf("%s:%s", d.HostApi.Name, d.Name)
}

func backendError(err error, operation string) error {
	return errors.New(err).
		Component(ComponentPortAudio).
		Category(errors.CategoryBackend).
		Context("operation", operation).
		Build()
}
