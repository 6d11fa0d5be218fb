package audiocore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
	"github.com/tphakala/audiobridge/internal/ringbuffer"
)

// StreamState is the lifecycle state of a Stream.
type StreamState int32

const (
	StateOpen StreamState = iota
	StateRunning
	StateStopped
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is an open audio stream with an optional playback Sink and an
// optional capture Source, both carrying samples of type T.
//
// A Stream must be closed. Close runs deterministically and is safe to call
// more than once.
type Stream[T Sample] struct {
	id       string
	cfg      StreamConfig
	format   SampleFormat
	backend  Backend
	device   DeviceInfo
	openedAt time.Time

	native     NativeStream
	callback   *CallbackContext[T]
	sinkRing   *ringbuffer.RingBuffer[T]
	sourceRing *ringbuffer.RingBuffer[T]
	sink       *Channel[T]
	source     *Channel[T]

	mu    sync.Mutex // serializes Start, Stop and Close
	state atomic.Int32
	log   logger.Logger
}

// Open opens a stream on backend. The stream starts stopped; call Start to
// run the engine callback.
func Open[T Sample](backend Backend, cfg StreamConfig) (s *Stream[T], err error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := Initialize(backend); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = Shutdown(backend)
		}
	}()

	devices, err := backend.Devices()
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("backend", backend.Name()).
			Context("operation", "list_devices").
			Build()
	}
	device, err := ResolveDevice(devices, cfg.Device)
	if err != nil {
		return nil, err
	}
	if !device.Supports(cfg.InputChannels, cfg.OutputChannels) {
		return nil, errors.New(fmt.Errorf("%w: device %q supports %d inputs and %d outputs",
			ErrInvalidConfig, device.Name, device.MaxInputChannels, device.MaxOutputChannels)).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("device", device.Name).
			Context("input_channels", cfg.InputChannels).
			Context("output_channels", cfg.OutputChannels).
			Build()
	}

	s = &Stream[T]{
		id:       uuid.New().String(),
		cfg:      cfg,
		format:   FormatOf[T](),
		backend:  backend,
		device:   device,
		openedAt: time.Now(),
	}
	s.log = GetLogger().With(
		logger.String("stream_id", s.id),
		logger.String("backend", backend.Name()),
	)

	if cfg.OutputChannels > 0 {
		if s.sinkRing, err = ringbuffer.New[T](cfg.RingCapacity(cfg.OutputChannels)); err != nil {
			return nil, err
		}
		port := newRingSinkPort(s.sinkRing, cfg.OutputChannels, cfg.ChunkFrames)
		s.sink = newChannel[T](DirectionSink, cfg.OutputChannels, cfg.SampleRate, cfg.ChunkFrames, cfg.PollInterval, port, s.id)
	}
	if cfg.InputChannels > 0 {
		if s.sourceRing, err = ringbuffer.New[T](cfg.RingCapacity(cfg.InputChannels)); err != nil {
			return nil, err
		}
		port := newRingSourcePort(s.sourceRing, cfg.InputChannels, cfg.ChunkFrames)
		s.source = newChannel[T](DirectionSource, cfg.InputChannels, cfg.SampleRate, cfg.ChunkFrames, cfg.PollInterval, port, s.id)
	}

	s.callback = NewCallbackContext(cfg.InputChannels, s.sourceRing, cfg.OutputChannels, s.sinkRing)

	native, err := backend.OpenStream(NativeConfig{
		Device:          device,
		InputChannels:   cfg.InputChannels,
		OutputChannels:  cfg.OutputChannels,
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
		Format:          s.format,
	}, s.callback.ProcessBytes)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryBackend).
			Context("backend", backend.Name()).
			Context("device", device.Name).
			Context("operation", "open_stream").
			Build()
	}
	s.native = native
	s.state.Store(int32(StateOpen))

	register(s.id, s)

	s.log.Info("audio stream opened",
		logger.String("device", device.Name),
		logger.String("format", s.format.String()),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("input_channels", cfg.InputChannels),
		logger.Int("output_channels", cfg.OutputChannels),
		logger.Int("frames_per_buffer", cfg.FramesPerBuffer))

	return s, nil
}

// ID returns the stream's unique identifier.
func (s *Stream[T]) ID() string { return s.id }

// Config returns the effective configuration, defaults applied.
func (s *Stream[T]) Config() StreamConfig { return s.cfg }

// Device returns the device the stream was opened on.
func (s *Stream[T]) Device() DeviceInfo { return s.device }

// State returns the current lifecycle state.
func (s *Stream[T]) State() StreamState { return StreamState(s.state.Load()) }

// Sink returns the playback channel, or nil when the stream has no outputs.
func (s *Stream[T]) Sink() *Channel[T] { return s.sink }

// Source returns the capture channel, or nil when the stream has no inputs.
func (s *Stream[T]) Source() *Channel[T] { return s.source }

// Start starts the engine callback. Starting a running stream is a no-op.
func (s *Stream[T]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateRunning:
		return nil
	case StateClosed:
		return s.invalidState("start")
	}

	if err := s.native.Start(); err != nil {
		return errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryBackend).
			StreamContext(s.id, "").
			Context("operation", "start").
			Build()
	}
	s.state.Store(int32(StateRunning))
	s.log.Debug("audio stream started")
	return nil
}

// Stop stops the engine callback. Buffered samples stay in the rings and
// are played or delivered after the next Start.
func (s *Stream[T]) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateOpen, StateStopped:
		return nil
	case StateClosed:
		return s.invalidState("stop")
	}

	if err := s.native.Stop(); err != nil {
		return errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryBackend).
			StreamContext(s.id, "").
			Context("operation", "stop").
			Build()
	}
	s.state.Store(int32(StateStopped))
	s.log.Debug("audio stream stopped")
	return nil
}

// Close stops the stream and releases everything Open acquired. Transfers
// queued on either direction fail with ErrStreamClosed and a transfer in
// progress returns its short count. Close waits for active transfers to
// return before releasing the rings.
func (s *Stream[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return nil
	}
	wasRunning := s.State() == StateRunning
	s.state.Store(int32(StateClosed))

	for _, ch := range []*Channel[T]{s.sink, s.source} {
		if ch != nil {
			ch.close()
		}
	}
	for _, ch := range []*Channel[T]{s.sink, s.source} {
		if ch != nil {
			<-ch.drained()
		}
	}

	var errs []error
	if wasRunning {
		if err := s.native.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.native.Close(); err != nil {
		errs = append(errs, err)
	}

	unregister(s.id)
	stats := s.callback.Stats()

	if err := Shutdown(s.backend); err != nil {
		errs = append(errs, err)
	}

	s.sinkRing = nil
	s.sourceRing = nil

	s.log.Info("audio stream closed",
		logger.Uint64("callbacks", stats.Callbacks),
		logger.Uint64("dropped_samples", stats.DroppedSamples),
		logger.Uint64("silenced_samples", stats.SilencedSamples),
		logger.Uint64("xruns", stats.Xruns))

	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component(ComponentAudioCore).
			Category(errors.CategoryBackend).
			StreamContext(s.id, "").
			Context("operation", "close").
			Build()
	}
	return nil
}

// Write plays every frame of buf, blocking until all of it is queued in the
// playback ring. See Channel.Transfer for the short count semantics.
func (s *Stream[T]) Write(ctx context.Context, buf FrameBuffer[T]) (int, error) {
	return s.transfer(ctx, s.sink, DirectionSink, buf)
}

// Read fills buf with captured frames, blocking until it is full.
func (s *Stream[T]) Read(ctx context.Context, buf FrameBuffer[T]) (int, error) {
	return s.transfer(ctx, s.source, DirectionSource, buf)
}

// Drain blocks until the engine has consumed every frame written to the
// sink, then waits one more engine period for the device to play it out.
// It returns at once for streams without a sink.
func (s *Stream[T]) Drain(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	if s.State() != StateRunning {
		return s.invalidState("drain")
	}

	ring := s.sink.ring()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for ring.ReadableCount() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.sink.state.closedCh():
			return ErrStreamClosed
		}
	}

	period := time.NewTimer(time.Duration(s.cfg.FramesPerBuffer) * time.Second / time.Duration(s.cfg.SampleRate))
	defer period.Stop()
	select {
	case <-period.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.sink.state.closedCh():
		return ErrStreamClosed
	}
}

func (s *Stream[T]) transfer(ctx context.Context, ch *Channel[T], dir Direction, buf FrameBuffer[T]) (int, error) {
	if s.State() == StateClosed {
		return 0, s.invalidState(dir.String())
	}
	if ch == nil {
		return 0, errors.New(ErrDirectionUnavailable).
			Component(ComponentAudioCore).
			StreamContext(s.id, dir.String()).
			Build()
	}
	return ch.Transfer(ctx, buf)
}

// Stats returns a snapshot of the stream's counters.
func (s *Stream[T]) Stats() StreamStats {
	stats := StreamStats{Callback: s.callback.Stats()}
	if s.sink != nil {
		stats.Sink = channelStats(s.sink)
	}
	if s.source != nil {
		stats.Source = channelStats(s.source)
	}
	return stats
}

func channelStats[T Sample](ch *Channel[T]) *ChannelStats {
	ring := ch.ring()
	st := &ChannelStats{
		Channels:          ch.channels,
		TransferredFrames: ch.TransferredFrames(),
		ShortTransfers:    ch.shortCount.Load(),
		Queued:            ch.Queued(),
	}
	if ring != nil {
		st.BufferedFrames = ring.ReadableCount() / ch.channels
		st.CapacityFrames = ring.Capacity() / ch.channels
	}
	return st
}

// Info implements the registry entry for Streams.
func (s *Stream[T]) Info() StreamInfo {
	return StreamInfo{
		ID:         s.id,
		Backend:    s.backend.Name(),
		Device:     s.device.Name,
		Format:     s.format.String(),
		SampleRate: s.cfg.SampleRate,
		State:      s.State().String(),
		OpenedAt:   s.openedAt,
		Stats:      s.Stats(),
	}
}

func (s *Stream[T]) invalidState(operation string) error {
	return errors.New(ErrInvalidState).
		Component(ComponentAudioCore).
		StreamContext(s.id, "").
		Context("operation", operation).
		Context("state", s.State().String()).
		Build()
}
