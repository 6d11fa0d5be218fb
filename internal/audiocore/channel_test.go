package audiocore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a sink port that records every frame it accepts and only
// takes as many frames as its budget allows.
type fakePort struct {
	channels int
	budget   atomic.Int64
	polls    atomic.Int64

	mu       sync.Mutex
	received []float32
}

func newFakePort(channels int, budget int64) *fakePort {
	p := &fakePort{channels: channels}
	p.budget.Store(budget)
	return p
}

func (p *fakePort) ReadyFrames() int {
	p.polls.Add(1)
	return int(p.budget.Load())
}

func (p *fakePort) TransferPlanar(staging [][]float32, n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := make([]float32, p.channels)
	for i := range n {
		for ch := range p.channels {
			frame[ch] = staging[ch][i]
		}
		p.received = append(p.received, frame...)
	}
	p.budget.Add(-int64(n))
	return n
}

func (p *fakePort) frames() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float32(nil), p.received...)
}

const unlimited = 1 << 30

func newTestChannel(port Port[float32], channels, chunk int) *Channel[float32] {
	return newChannel[float32](DirectionSink, channels, 48000, chunk, time.Millisecond, port, "test")
}

func rampBuffer(frames, channels int, base float32) FrameBuffer[float32] {
	buf := NewFrameBuffer[float32](frames, channels)
	for i := range buf.Data {
		buf.Data[i] = base + float32(i)
	}
	return buf
}

func TestTransferMovesAllFramesInOrder(t *testing.T) {
	t.Parallel()

	port := newFakePort(2, unlimited)
	ch := newTestChannel(port, 2, 16)
	buf := rampBuffer(100, 2, 1)

	n, err := ch.Transfer(t.Context(), buf)

	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, buf.Data, port.frames())
	assert.Equal(t, uint64(100), ch.TransferredFrames())
	assert.Equal(t, DirectionSink, ch.Direction())
	assert.Equal(t, 2, ch.NChannels())
	assert.Equal(t, 48000, ch.SampleRate())
}

func TestTransferWaitsForDeviceSpace(t *testing.T) {
	t.Parallel()

	port := newFakePort(1, 0)
	ch := newTestChannel(port, 1, 8)
	buf := rampBuffer(20, 1, 0)

	done := make(chan int, 1)
	go func() {
		n, _ := ch.Transfer(context.Background(), buf)
		done <- n
	}()

	require.Eventually(t, func() bool { return port.polls.Load() > 2 }, time.Second, time.Millisecond)
	port.budget.Store(unlimited)

	assert.Equal(t, 20, <-done)
	assert.Equal(t, buf.Data, port.frames())
}

func TestTransferRejectsChannelMismatch(t *testing.T) {
	t.Parallel()

	ch := newTestChannel(newFakePort(2, unlimited), 2, 8)
	n, err := ch.Transfer(t.Context(), NewFrameBuffer[float32](4, 1))

	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrChannelMismatch)
}

func TestTransferEmptyBufferReturnsImmediately(t *testing.T) {
	t.Parallel()

	ch := newTestChannel(newFakePort(1, 0), 1, 8)
	n, err := ch.Transfer(t.Context(), FrameBuffer[float32]{Channels: 1})

	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestTransferFIFOFairness(t *testing.T) {
	t.Parallel()

	const frames = 32
	port := newFakePort(1, 0)
	ch := newTestChannel(port, 1, 8)

	type result struct {
		id, n int
		err   error
	}
	results := make(chan result, 3)
	var wg sync.WaitGroup
	start := func(id int) {
		wg.Go(func() {
			n, err := ch.Transfer(context.Background(), rampBuffer(frames, 1, float32(id*1000)))
			results <- result{id, n, err}
		})
	}

	// The first transfer owns the channel and polls an empty device
	start(0)
	require.Eventually(t, func() bool { return port.polls.Load() > 0 }, time.Second, time.Millisecond)
	start(1)
	waitQueued(t, ch.Queued, 1)
	start(2)
	waitQueued(t, ch.Queued, 2)

	port.budget.Store(unlimited)
	wg.Wait()
	close(results)

	for r := range results {
		require.NoError(t, r.err, "transfer %d", r.id)
		assert.Equal(t, frames, r.n, "transfer %d", r.id)
	}

	// Transfers run one at a time, so the device sees them in service order
	got := port.frames()
	require.Len(t, got, 3*frames)
	for id := range 3 {
		assert.Equal(t, float32(id*1000), got[id*frames], "transfer %d data out of order", id)
	}
}

func TestTransferShortCountOnClose(t *testing.T) {
	t.Parallel()

	port := newFakePort(1, 10)
	ch := newTestChannel(port, 1, 4)

	type result struct {
		n   int
		err error
	}
	active := make(chan result, 1)
	queued := make(chan result, 1)

	go func() {
		n, err := ch.Transfer(context.Background(), rampBuffer(100, 1, 0))
		active <- result{n, err}
	}()
	require.Eventually(t, func() bool { return port.budget.Load() == 0 }, time.Second, time.Millisecond)

	go func() {
		n, err := ch.Transfer(context.Background(), rampBuffer(100, 1, 0))
		queued <- result{n, err}
	}()
	waitQueued(t, ch.Queued, 1)

	ch.close()

	a := <-active
	assert.Equal(t, 10, a.n)
	assert.ErrorIs(t, a.err, ErrStreamClosed)

	q := <-queued
	assert.Zero(t, q.n)
	assert.ErrorIs(t, q.err, ErrStreamClosed)

	<-ch.drained()
	assert.Equal(t, uint64(10), ch.TransferredFrames())
}

func TestTransferStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	port := newFakePort(1, 5)
	ch := newTestChannel(port, 1, 4)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	n, err := ch.Transfer(ctx, rampBuffer(50, 1, 0))

	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The channel is free again
	port.budget.Store(unlimited)
	n, err = ch.Transfer(t.Context(), rampBuffer(3, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
