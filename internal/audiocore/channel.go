package audiocore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/ringbuffer"
)

// Direction tags a Channel as playback (Sink) or capture (Source).
type Direction int

const (
	DirectionSink Direction = iota
	DirectionSource
)

func (d Direction) String() string {
	switch d {
	case DirectionSink:
		return "sink"
	case DirectionSource:
		return "source"
	default:
		return "unknown"
	}
}

// Channel is one direction of a stream. A Sink channel accepts frames from
// the application and a Source channel delivers captured frames to it. Both
// share the same transfer logic.
type Channel[T Sample] struct {
	dir          Direction
	channels     int
	sampleRate   int
	chunkFrames  int
	pollInterval time.Duration
	streamID     string

	port    Port[T]
	state   *channelState
	staging [][]T // owned by whoever holds state

	transferred atomic.Uint64 // frames
	shortCount  atomic.Uint64 // transfers that ended early
}

func newChannel[T Sample](dir Direction, channels, sampleRate, chunkFrames int, pollInterval time.Duration, port Port[T], streamID string) *Channel[T] {
	return &Channel[T]{
		dir:          dir,
		channels:     channels,
		sampleRate:   sampleRate,
		chunkFrames:  chunkFrames,
		pollInterval: pollInterval,
		streamID:     streamID,
		port:         port,
		state:        newChannelState(),
		staging:      NewPlanar[T](channels, chunkFrames),
	}
}

// Direction returns whether this is the sink or the source.
func (c *Channel[T]) Direction() Direction { return c.dir }

// NChannels returns the number of interleaved channels per frame.
func (c *Channel[T]) NChannels() int { return c.channels }

// SampleRate returns the stream sample rate in Hz.
func (c *Channel[T]) SampleRate() int { return c.sampleRate }

// Queued returns the number of transfers waiting for this channel.
func (c *Channel[T]) Queued() int { return c.state.queued() }

// TransferredFrames returns the total frames moved by completed chunks.
func (c *Channel[T]) TransferredFrames() uint64 { return c.transferred.Load() }

// Transfer moves every frame of buf through the channel, blocking until
// done. Sink channels read buf; source channels fill it.
//
// Concurrent transfers on the same channel run one at a time in arrival
// order. The returned count equals buf.Frames() unless the stream closed
// (ErrStreamClosed) or ctx ended (ctx.Err()), in which case the frames moved
// so far are returned with the error.
func (c *Channel[T]) Transfer(ctx context.Context, buf FrameBuffer[T]) (int, error) {
	if buf.Channels != c.channels {
		return 0, errors.New(ErrChannelMismatch).
			Component(ComponentAudioCore).
			StreamContext(c.streamID, c.dir.String()).
			Context("expected_channels", c.channels).
			Context("buffer_channels", buf.Channels).
			Build()
	}

	total := buf.Frames()
	if total == 0 {
		return 0, nil
	}

	if err := c.state.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.state.release()

	transferred, err := c.run(ctx, buf, total)
	c.transferred.Add(uint64(transferred))
	if err != nil {
		c.shortCount.Add(1)
	}
	return transferred, err
}

// run is the chunk loop. The caller owns the channel state.
func (c *Channel[T]) run(ctx context.Context, buf FrameBuffer[T], total int) (int, error) {
	timer := time.NewTimer(c.pollInterval)
	timer.Stop()
	defer timer.Stop()

	transferred := 0
	for transferred < total {
		select {
		case <-c.state.closedCh():
			return transferred, ErrStreamClosed
		default:
		}
		if err := ctx.Err(); err != nil {
			return transferred, err
		}

		n := min(c.chunkFrames, total-transferred, c.port.ReadyFrames())
		if n > 0 {
			chunk := buf.Data[transferred*c.channels : (transferred+n)*c.channels]
			var moved int
			if c.dir == DirectionSink {
				Deinterleave(c.staging, chunk, n)
				moved = c.port.TransferPlanar(c.staging, n)
			} else {
				moved = c.port.TransferPlanar(c.staging, n)
				Interleave(chunk, c.staging, moved)
			}
			transferred += moved

			// A full chunk means the device may have more room or data
			if moved == c.chunkFrames || transferred == total {
				continue
			}
		}

		timer.Reset(c.pollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return transferred, ctx.Err()
		case <-c.state.closedCh():
			return transferred, ErrStreamClosed
		}
	}

	return transferred, nil
}

// close wakes queued transfers with ErrStreamClosed and interrupts the
// active one at its next chunk boundary.
func (c *Channel[T]) close() {
	c.state.close()
}

// drained is closed once close has run and no transfer remains active.
func (c *Channel[T]) drained() <-chan struct{} {
	return c.state.drained()
}

// ring returns the ring behind the channel's port, if it has one.
func (c *Channel[T]) ring() *ringbuffer.RingBuffer[T] {
	if rp, ok := c.port.(interface {
		buffer() *ringbuffer.RingBuffer[T]
	}); ok {
		return rp.buffer()
	}
	return nil
}
