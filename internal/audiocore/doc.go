// Package audiocore moves audio samples between a hard real-time engine
// callback and application goroutines that perform blocking reads and writes.
//
// # Architecture Overview
//
//   - RingBuffer (package ringbuffer): the only object touched by both the
//     real-time callback and application code
//   - CallbackContext: per-stream real-time logic that drains the sink ring into
//     the device output and fills the source ring from the device input
//   - Channel: the blocking, direction-tagged transfer path used by
//     applications (Stream.Sink for playback, Stream.Source for capture)
//   - Stream: lifecycle wrapper around a native stream opened through a Backend
//   - Backend: an audio engine (miniaudio, PortAudio, or the pure-Go loopback)
//
// # Concurrency and Thread Safety
//
// Two scheduling domains coexist:
//
//  1. The engine invokes CallbackContext.Process once per period on its own
//     thread. The callback never allocates, never locks and never logs.
//     Overflow on the capture side is dropped, underrun on the playback side
//     is filled with silence, and the callback always asks the engine to
//     continue.
//  2. Application goroutines call Channel.Transfer. Concurrent callers on the
//     same direction are served one at a time in arrival order; a caller that
//     finishes hands the channel directly to the next queued caller.
//
// Each ring buffer has exactly one producer and one consumer. The per-direction
// FIFO lock guarantees that only one application goroutine at a time acts as
// the application-side endpoint.
//
// # Lifecycle
//
// The first Open on a backend initializes it and the last Close terminates it.
// Close is deterministic: it wakes queued transfers with ErrStreamClosed, stops
// the native stream, and only then releases the ring buffers.
//
//	stream, err := audiocore.Open[float32](backend, cfg)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	if err := stream.Start(); err != nil {
//	    return err
//	}
//	n, err := stream.Write(ctx, frames)
//
// # Error Handling
//
// All errors use the enhanced error system with component "audiocore". A short
// transfer always comes with a non-nil error: ErrStreamClosed when the stream
// was closed, or the context error when the caller cancelled.
package audiocore
