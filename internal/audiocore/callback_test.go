package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/ringbuffer"
)

const (
	testFrames   = 64
	testInChans  = 2
	testOutChans = 3
)

type callbackFixture[T Sample] struct {
	cb     *CallbackContext[T]
	source *ringbuffer.RingBuffer[T]
	sink   *ringbuffer.RingBuffer[T]
	in     []T
	out    []T
}

func newCallbackFixture[T Sample](t *testing.T, periods int) *callbackFixture[T] {
	t.Helper()

	source, err := ringbuffer.New[T](testFrames * testInChans * periods)
	require.NoError(t, err)
	sink, err := ringbuffer.New[T](testFrames * testOutChans * periods)
	require.NoError(t, err)

	f := &callbackFixture[T]{
		cb:     NewCallbackContext(testInChans, source, testOutChans, sink),
		source: source,
		sink:   sink,
		in:     make([]T, testFrames*testInChans),
		out:    make([]T, testFrames*testOutChans),
	}
	for i := range f.in {
		f.in[i] = T(i%100 + 1)
	}
	return f
}

func TestCallbackDoesNotAllocate(t *testing.T) {
	f := newCallbackFixture[float32](t, 4)
	playback := make([]float32, testFrames*testOutChans)
	drain := make([]float32, testFrames*testInChans)

	t.Run("full sink", func(t *testing.T) {
		allocs := testing.AllocsPerRun(100, func() {
			f.sink.Write(playback)
			f.cb.Process(f.in, f.out, testFrames, CallbackInfo{})
			f.source.Read(drain)
		})
		assert.Zero(t, allocs)
	})

	t.Run("empty sink", func(t *testing.T) {
		f.sink.Reset()
		allocs := testing.AllocsPerRun(100, func() {
			f.cb.Process(f.in, f.out, testFrames, CallbackInfo{Flags: OutputUnderflow})
			f.source.Read(drain)
		})
		assert.Zero(t, allocs)
	})

	t.Run("bytes", func(t *testing.T) {
		in := SamplesAsBytes(f.in)
		out := SamplesAsBytes(f.out)
		allocs := testing.AllocsPerRun(100, func() {
			f.cb.ProcessBytes(out, in, testFrames, CallbackInfo{})
			f.source.Read(drain)
		})
		assert.Zero(t, allocs)
	})
}

func TestCallbackFullRoundTrip(t *testing.T) {
	t.Parallel()

	f := newCallbackFixture[int16](t, 1)
	playback := make([]int16, testFrames*testOutChans)
	for i := range playback {
		playback[i] = int16(-i - 1)
	}
	require.Equal(t, len(playback), f.sink.Write(playback))

	res := f.cb.Process(f.in, f.out, testFrames, CallbackInfo{})

	assert.Equal(t, Continue, res)
	assert.Equal(t, playback, f.out)
	require.Equal(t, testFrames*testInChans, f.source.ReadableCount())

	captured := make([]int16, testFrames*testInChans)
	f.source.Read(captured)
	assert.Equal(t, f.in, captured)

	stats := f.cb.Stats()
	assert.Equal(t, uint64(1), stats.Callbacks)
	assert.Equal(t, uint64(testFrames), stats.Frames)
	assert.Zero(t, stats.DroppedSamples)
	assert.Zero(t, stats.SilencedSamples)
}

func TestCallbackPartialUnderrun(t *testing.T) {
	t.Parallel()

	const k = 20
	f := newCallbackFixture[float32](t, 1)
	playback := make([]float32, k*testOutChans)
	for i := range playback {
		playback[i] = float32(i+1) / 1000
	}
	f.sink.Write(playback)
	for i := range f.out {
		f.out[i] = 42 // garbage from a previous period
	}

	f.cb.Process(f.in, f.out, testFrames, CallbackInfo{})

	assert.Equal(t, playback, f.out[:k*testOutChans])
	for i, v := range f.out[k*testOutChans:] {
		require.Zerof(t, v, "sample %d after the underrun point", i)
	}
	assert.Equal(t, testFrames*testInChans, f.source.ReadableCount())
	assert.Equal(t, uint64((testFrames-k)*testOutChans), f.cb.Stats().SilencedSamples)
}

func TestCallbackPartialOverflowKeepsWholeFrames(t *testing.T) {
	t.Parallel()

	f := newCallbackFixture[float32](t, 1)
	// Leave room for 10 frames plus one stray sample
	f.source.Write(make([]float32, (testFrames-10)*testInChans-1))

	f.cb.Process(f.in, f.out, testFrames, CallbackInfo{})

	assert.Equal(t, f.source.Capacity()-1, f.source.ReadableCount())
	assert.Equal(t, uint64((testFrames-10)*testInChans), f.cb.Stats().DroppedSamples)
}

func TestCallbackTotalUnderrun(t *testing.T) {
	t.Parallel()

	f := newCallbackFixture[int32](t, 1)
	for i := range f.out {
		f.out[i] = 7
	}

	f.cb.Process(f.in, f.out, testFrames, CallbackInfo{})

	assert.Equal(t, make([]int32, testFrames*testOutChans), f.out)
	assert.Equal(t, testFrames*testInChans, f.source.ReadableCount())
	assert.Equal(t, uint64(testFrames*testOutChans), f.cb.Stats().SilencedSamples)
}

func TestCallbackUnsignedSilence(t *testing.T) {
	t.Parallel()

	sink, err := ringbuffer.New[uint8](16)
	require.NoError(t, err)
	cb := NewCallbackContext[uint8](0, nil, 1, sink)
	out := make([]uint8, 8)

	cb.Process(nil, out, len(out), CallbackInfo{})

	for _, v := range out {
		assert.Equal(t, uint8(0x80), v)
	}
	assert.False(t, cb.Duplex())
}

func TestCallbackCountsXruns(t *testing.T) {
	t.Parallel()

	f := newCallbackFixture[float32](t, 2)
	f.cb.Process(f.in, f.out, testFrames, CallbackInfo{Flags: InputOverflow | OutputUnderflow})
	f.cb.Process(f.in, f.out, testFrames, CallbackInfo{Flags: PrimingOutput})

	stats := f.cb.Stats()
	assert.Equal(t, uint64(1), stats.Xruns)
	assert.Equal(t, uint64(2), stats.Callbacks)
	assert.True(t, f.cb.Duplex())
}
