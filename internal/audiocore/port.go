package audiocore

import (
	"github.com/tphakala/audiobridge/internal/ringbuffer"
)

// Port is the native side of one stream direction as seen by a transfer.
// A Channel moves data through a Port in channel-major chunks.
type Port[T Sample] interface {
	// ReadyFrames reports how many frames can be moved right now without
	// blocking: free space for playback, buffered data for capture.
	ReadyFrames() int

	// TransferPlanar moves n frames between the planar staging buffer and
	// the device and returns the frames moved. For playback staging is read;
	// for capture staging is written.
	TransferPlanar(staging [][]T, n int) int
}

// ringSinkPort feeds the playback ring that the engine callback drains.
type ringSinkPort[T Sample] struct {
	ring     *ringbuffer.RingBuffer[T]
	channels int
	scratch  []T
}

func newRingSinkPort[T Sample](ring *ringbuffer.RingBuffer[T], channels, chunkFrames int) *ringSinkPort[T] {
	return &ringSinkPort[T]{
		ring:     ring,
		channels: channels,
		scratch:  make([]T, chunkFrames*channels),
	}
}

func (p *ringSinkPort[T]) ReadyFrames() int {
	return p.ring.WritableCapacity() / p.channels
}

func (p *ringSinkPort[T]) TransferPlanar(staging [][]T, n int) int {
	n = min(n, len(p.scratch)/p.channels)
	Interleave(p.scratch, staging, n)
	return p.ring.Write(p.scratch[:n*p.channels]) / p.channels
}

// ringSourcePort drains the capture ring that the engine callback fills.
type ringSourcePort[T Sample] struct {
	ring     *ringbuffer.RingBuffer[T]
	channels int
	scratch  []T
}

func newRingSourcePort[T Sample](ring *ringbuffer.RingBuffer[T], channels, chunkFrames int) *ringSourcePort[T] {
	return &ringSourcePort[T]{
		ring:     ring,
		channels: channels,
		scratch:  make([]T, chunkFrames*channels),
	}
}

func (p *ringSourcePort[T]) ReadyFrames() int {
	return p.ring.ReadableCount() / p.channels
}

func (p *ringSourcePort[T]) TransferPlanar(staging [][]T, n int) int {
	n = min(n, len(p.scratch)/p.channels)
	frames := p.ring.Read(p.scratch[:n*p.channels]) / p.channels
	Deinterleave(staging, p.scratch, frames)
	return frames
}

func (p *ringSinkPort[T]) buffer() *ringbuffer.RingBuffer[T]   { return p.ring }
func (p *ringSourcePort[T]) buffer() *ringbuffer.RingBuffer[T] { return p.ring }
