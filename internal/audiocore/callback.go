package audiocore

import (
	"sync/atomic"
	"time"

	"github.com/tphakala/audiobridge/internal/ringbuffer"
)

// CallbackResult tells the engine whether to keep the stream running.
type CallbackResult int

const (
	// Continue keeps the stream running. It is the only result Process returns.
	Continue CallbackResult = iota
	// Complete asks the engine to drain and stop.
	Complete
	// Abort asks the engine to stop immediately.
	Abort
)

// StatusFlags carries the engine's per-period xrun indicators.
type StatusFlags uint32

const (
	InputUnderflow StatusFlags = 1 << iota
	InputOverflow
	OutputUnderflow
	OutputOverflow
	PrimingOutput
)

// CallbackInfo is the timing and status information an engine passes with
// each period. Engines that provide none pass the zero value.
type CallbackInfo struct {
	InputTime   time.Duration // capture time of the first input frame
	OutputTime  time.Duration // playback time of the first output frame
	CurrentTime time.Duration // engine clock when the callback was invoked
	Flags       StatusFlags
}

// HostCallback is the byte-level callback a Backend invokes once per
// period. out and in hold interleaved samples in the stream's format; either
// may be empty when the direction is not configured.
type HostCallback func(out, in []byte, frames uint32, info CallbackInfo)

// callbackStats are written only by the engine thread and read by anyone.
type callbackStats struct {
	callbacks       atomic.Uint64
	frames          atomic.Uint64
	droppedSamples  atomic.Uint64
	silencedSamples atomic.Uint64
	xruns           atomic.Uint64
}

// CallbackContext is the per-stream real-time logic. It copies captured
// input into the source ring and fills the device output from the sink ring.
// It is immutable after construction apart from its statistics.
type CallbackContext[T Sample] struct {
	inChans  int
	source   *ringbuffer.RingBuffer[T] // capture side, engine is the producer
	outChans int
	sink     *ringbuffer.RingBuffer[T] // playback side, engine is the consumer
	duplex   bool
	silence  T

	stats callbackStats
}

// NewCallbackContext builds the callback for a stream. source may be nil
// when inChans is 0 and sink may be nil when outChans is 0.
func NewCallbackContext[T Sample](inChans int, source *ringbuffer.RingBuffer[T], outChans int, sink *ringbuffer.RingBuffer[T]) *CallbackContext[T] {
	return &CallbackContext[T]{
		inChans:  inChans,
		source:   source,
		outChans: outChans,
		sink:     sink,
		duplex:   inChans > 0 && outChans > 0,
		silence:  SilenceOf[T](),
	}
}

// Duplex reports whether the callback handles both capture and playback.
func (cc *CallbackContext[T]) Duplex() bool {
	return cc.duplex
}

// Process runs one engine period of nframes frames. in holds
// nframes*inChans captured samples and out receives nframes*outChans
// samples. Captured samples the source ring cannot take are dropped, and
// output the sink ring cannot supply is filled with silence. It never
// blocks or allocates and always returns Continue.
func (cc *CallbackContext[T]) Process(in, out []T, nframes int, info CallbackInfo) CallbackResult {
	cc.stats.callbacks.Add(1)
	cc.stats.frames.Add(uint64(nframes))
	if info.Flags&(InputUnderflow|InputOverflow|OutputUnderflow|OutputOverflow) != 0 {
		cc.stats.xruns.Add(1)
	}

	if cc.inChans > 0 {
		want := min(nframes*cc.inChans, len(in))
		written := 0
		if cc.source != nil {
			// Whole frames only, so the ring never holds a partial frame
			room := cc.source.WritableCapacity() / cc.inChans * cc.inChans
			written = cc.source.Write(in[:min(want, room)])
		}
		if dropped := want - written; dropped > 0 {
			cc.stats.droppedSamples.Add(uint64(dropped))
		}
	}

	if cc.outChans > 0 {
		want := min(nframes*cc.outChans, len(out))
		read := 0
		if cc.sink != nil {
			read = cc.sink.Read(out[:want])
		}
		if read < want {
			fillSilence(out[read:want], cc.silence)
			cc.stats.silencedSamples.Add(uint64(want - read))
		}
	}

	return Continue
}

// ProcessBytes adapts Process to byte-oriented engines. It matches
// HostCallback.
func (cc *CallbackContext[T]) ProcessBytes(out, in []byte, frames uint32, info CallbackInfo) {
	cc.Process(BytesAsSamples[T](in), BytesAsSamples[T](out), int(frames), info)
}

// CallbackStats is a point-in-time copy of the real-time counters.
type CallbackStats struct {
	Callbacks       uint64 `json:"callbacks"`
	Frames          uint64 `json:"frames"`
	DroppedSamples  uint64 `json:"dropped_samples"`
	SilencedSamples uint64 `json:"silenced_samples"`
	Xruns           uint64 `json:"xruns"`
}

// Stats returns a snapshot of the callback counters.
func (cc *CallbackContext[T]) Stats() CallbackStats {
	return CallbackStats{
		Callbacks:       cc.stats.callbacks.Load(),
		Frames:          cc.stats.frames.Load(),
		DroppedSamples:  cc.stats.droppedSamples.Load(),
		SilencedSamples: cc.stats.silencedSamples.Load(),
		Xruns:           cc.stats.xruns.Load(),
	}
}
