// Package testutil provides shared helpers for tests that run streams on the
// loopback backend.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/audiofile"
	"github.com/tphakala/audiobridge/internal/buildinfo"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/config"
)

// Common test constants.
const (
	// DefaultTestTimeout bounds tests that run a real-time loopback stream.
	DefaultTestTimeout = 10 * time.Second

	// TestSampleRate keeps real-time loopback tests short.
	TestSampleRate = 8000

	// TestFramesPerBuffer is a 16ms period at TestSampleRate.
	TestFramesPerBuffer = 128
)

// LoopbackSettings returns settings for a loopback stream on device
// ("loopback" or "null") with small periods and a fast poll interval.
func LoopbackSettings(device, format string, inputs, outputs int) *conf.Settings {
	return &conf.Settings{
		Audio: conf.AudioSettings{
			Backend:         "loopback",
			Device:          device,
			SampleRate:      TestSampleRate,
			InputChannels:   inputs,
			OutputChannels:  outputs,
			FramesPerBuffer: TestFramesPerBuffer,
			RingPeriods:     8,
			PollInterval:    2 * time.Millisecond,
			Format:          format,
			BitDepth:        16,
		},
	}
}

// LoopbackApp returns an application context over LoopbackSettings. The
// context is closed when the test ends.
func LoopbackApp(t testing.TB, device, format string, inputs, outputs int) *config.Context {
	t.Helper()
	app := config.NewContext(LoopbackSettings(device, format, inputs, outputs), buildinfo.NewContext("test", ""))
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// WriteRamp writes a 16-bit WAV file of frames x channels samples holding a
// repeating ramp and returns its path.
func WriteRamp(t testing.TB, frames, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramp.wav")
	w, err := audiofile.CreateWAV(path, TestSampleRate, channels, 16)
	require.NoError(t, err)

	buf := audiocore.NewFrameBuffer[float32](frames, channels)
	for i := range buf.Data {
		buf.Data[i] = float32(i%40-20) / 40
	}
	require.NoError(t, w.Write(buf))
	require.NoError(t, w.Close())
	return path
}
