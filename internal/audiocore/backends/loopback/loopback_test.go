package loopback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures the buffers the stream hands to the callback.
type recorder struct {
	mu     sync.Mutex
	calls  int
	inputs [][]byte
	fill   byte
}

func (r *recorder) callback(out, in []byte, _ uint32, _ audiocore.CallbackInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.inputs = append(r.inputs, append([]byte(nil), in...))
	for i := range out {
		out[i] = r.fill
	}
}

func (r *recorder) snapshot() (int, [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, append([][]byte(nil), r.inputs...)
}

func nativeConfig(device string, format audiocore.SampleFormat, in, out int) audiocore.NativeConfig {
	return audiocore.NativeConfig{
		Device:          audiocore.DeviceInfo{ID: device, Name: device},
		InputChannels:   in,
		OutputChannels:  out,
		SampleRate:      8000,
		FramesPerBuffer: 16,
		Format:          format,
	}
}

func TestDevices(t *testing.T) {
	t.Parallel()

	devices, err := New().Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, DeviceLoopback, devices[0].ID)
	assert.True(t, devices[0].IsDefault)
	assert.Equal(t, DeviceNull, devices[1].ID)
	assert.False(t, devices[1].IsDefault)
}

func TestOpenStreamRequiresInit(t *testing.T) {
	t.Parallel()

	b := New()
	_, err := b.OpenStream(nativeConfig(DeviceLoopback, audiocore.FormatS16, 1, 1), func([]byte, []byte, uint32, audiocore.CallbackInfo) {})
	require.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, b.Init())
	require.NoError(t, b.Terminate())
	inits, terms := b.Lifecycle()
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, terms)
}

func TestOpenStreamRejectsBadParameters(t *testing.T) {
	t.Parallel()

	b := New()
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Terminate() })

	cfg := nativeConfig(DeviceLoopback, audiocore.FormatS16, 1, 1)
	cfg.FramesPerBuffer = 0
	_, err := b.OpenStream(cfg, func([]byte, []byte, uint32, audiocore.CallbackInfo) {})
	require.Error(t, err)
}

func TestLoopbackFeedsOutputBack(t *testing.T) {
	t.Parallel()

	b := New(WithPeriod(time.Millisecond))
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Terminate() })

	rec := &recorder{fill: 0x11}
	s, err := b.OpenStream(nativeConfig(DeviceLoopback, audiocore.FormatS16, 1, 2), rec.callback)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		calls, _ := rec.snapshot()
		return calls >= 3
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Close())

	_, inputs := rec.snapshot()
	// First period captures silence, later ones see the previous output
	assert.Equal(t, make([]byte, 16*2), inputs[0])
	for i := range inputs[1] {
		assert.Equal(t, byte(0x11), inputs[1][i])
	}
}

func TestNullDeviceCapturesSilence(t *testing.T) {
	t.Parallel()

	b := New(WithPeriod(time.Millisecond))
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Terminate() })

	rec := &recorder{fill: 0x11}
	s, err := b.OpenStream(nativeConfig(DeviceNull, audiocore.FormatU8, 2, 2), rec.callback)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		calls, _ := rec.snapshot()
		return calls >= 2
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Stop())

	_, inputs := rec.snapshot()
	for _, in := range inputs {
		for _, v := range in {
			assert.Equal(t, byte(0x80), v)
		}
	}

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(), audiocore.ErrInvalidState)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	b := New(WithPeriod(time.Millisecond))
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Terminate() })

	s, err := b.OpenStream(nativeConfig(DeviceNull, audiocore.FormatF32, 0, 1), func([]byte, []byte, uint32, audiocore.CallbackInfo) {})
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
