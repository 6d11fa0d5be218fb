// Package ringbuffer implements a fixed-capacity, lock-free single-producer
// single-consumer ring buffer of samples.
//
// The buffer is the only object shared between an audio engine's real-time
// callback and application goroutines. Write, Read and the count queries never
// block, never take a lock and never allocate.
//
// Thread assignment:
//   - Write: producer goroutine only
//   - Read: consumer goroutine only
//   - ReadableCount, WritableCapacity, Capacity: either side
//
// Memory ordering: sync/atomic operations are sequentially consistent. The
// producer publishes the write cursor only after copying the data, and the
// consumer loads the write cursor before copying, so a consumer that observes
// an advanced cursor also observes the samples behind it. The same holds in
// the other direction for the read cursor and freed space.
package ringbuffer

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/tphakala/audiobridge/internal/errors"
)

// ErrInvalidCapacity is returned by New for non-positive capacities.
var ErrInvalidCapacity = errors.New(errors.NewStd("ring buffer capacity must be positive")).
	Component("ringbuffer").
	Category(errors.CategoryValidation).
	Build()

// RingBuffer is a circular buffer of capacity C elements with two
// monotonically increasing cursors. readable = write - read and
// writable = C - readable.
type RingBuffer[T any] struct {
	_        cpu.CacheLinePad
	writePos atomic.Uint64 // advanced by the producer only
	_        cpu.CacheLinePad
	readPos  atomic.Uint64 // advanced by the consumer only
	_        cpu.CacheLinePad

	buf      []T
	capacity uint64
}

// New allocates a ring buffer holding capacity elements. The capacity does
// not need to be a power of two.
func New[T any](capacity int) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, errors.New(ErrInvalidCapacity).
			Context("capacity", capacity).
			Build()
	}
	return &RingBuffer[T]{
		buf:      make([]T, capacity),
		capacity: uint64(capacity),
	}, nil
}

// used returns the number of readable elements. The read cursor is loaded
// first so the difference cannot underflow; the result is clamped because a
// concurrent read between the two loads can make it overshoot.
func (rb *RingBuffer[T]) used() uint64 {
	r := rb.readPos.Load()
	w := rb.writePos.Load()
	return min(w-r, rb.capacity)
}

// Write copies min(len(data), WritableCapacity()) elements into the buffer
// and returns the count written. A full buffer yields 0.
func (rb *RingBuffer[T]) Write(data []T) int {
	w := rb.writePos.Load()
	r := rb.readPos.Load()

	n := min(uint64(len(data)), rb.capacity-(w-r))
	if n == 0 {
		return 0
	}

	pos := w % rb.capacity
	if first := rb.capacity - pos; first >= n {
		copy(rb.buf[pos:pos+n], data[:n])
	} else {
		copy(rb.buf[pos:], data[:first])
		copy(rb.buf[:n-first], data[first:n])
	}

	rb.writePos.Store(w + n)
	return int(n)
}

// Read copies min(len(dest), ReadableCount()) elements out of the buffer and
// returns the count read. Slots of dest past the returned count are left
// untouched.
func (rb *RingBuffer[T]) Read(dest []T) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	n := min(uint64(len(dest)), w-r)
	if n == 0 {
		return 0
	}

	pos := r % rb.capacity
	if first := rb.capacity - pos; first >= n {
		copy(dest[:n], rb.buf[pos:pos+n])
	} else {
		copy(dest[:first], rb.buf[pos:])
		copy(dest[first:n], rb.buf[:n-first])
	}

	rb.readPos.Store(r + n)
	return int(n)
}

// ReadableCount returns the number of elements available to Read.
func (rb *RingBuffer[T]) ReadableCount() int {
	return int(rb.used())
}

// WritableCapacity returns the number of elements Write can accept.
func (rb *RingBuffer[T]) WritableCapacity() int {
	return int(rb.capacity - rb.used())
}

// Capacity returns the total number of elements the buffer holds.
func (rb *RingBuffer[T]) Capacity() int {
	return int(rb.capacity)
}

// Reset empties the buffer. It must not race with Write or Read.
func (rb *RingBuffer[T]) Reset() {
	rb.readPos.Store(rb.writePos.Load())
}
