package record

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiobridge/internal/audiofile"
	"github.com/tphakala/audiobridge/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunRecordsRequestedDuration(t *testing.T) {
	for _, format := range []string{"f32", "s16", "u8"} {
		t.Run(format, func(t *testing.T) {
			app := testutil.LoopbackApp(t, "null", format, 2, 0)
			path := filepath.Join(t.TempDir(), "capture.wav")

			ctx, cancel := context.WithTimeout(t.Context(), testutil.DefaultTestTimeout)
			defer cancel()

			err := Run(ctx, app, path, Options{Duration: 250 * time.Millisecond})
			require.NoError(t, err)
			require.NoError(t, app.Close())

			src, err := audiofile.Open(path)
			require.NoError(t, err)
			defer src.Close()

			assert.Equal(t, 8000, src.SampleRate())
			assert.Equal(t, 2, src.Channels())

			all, err := audiofile.ReadAll(src)
			require.NoError(t, err)
			assert.Equal(t, 2000, all.Frames())
			for _, v := range all.Data {
				require.InDelta(t, 0, v, 1e-6, "null device captures silence")
			}
		})
	}
}

func TestRunInterruptedKeepsCapturedAudio(t *testing.T) {
	app := testutil.LoopbackApp(t, "null", "f32", 1, 0)
	path := filepath.Join(t.TempDir(), "interrupted.wav")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	timer := time.AfterFunc(200*time.Millisecond, cancel)
	defer timer.Stop()

	err := Run(ctx, app, path, Options{Duration: 0})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	src, err := audiofile.Open(path)
	require.NoError(t, err)
	defer src.Close()
	all, err := audiofile.ReadAll(src)
	require.NoError(t, err)
	assert.Positive(t, all.Frames())
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		format string
		inputs int
	}{
		{"no input channels", "f32", 0},
		{"unknown format", "f64", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.wav")
			err := Run(t.Context(), testutil.LoopbackApp(t, "null", tt.format, tt.inputs, 0), path, Options{Duration: time.Second})
			require.Error(t, err)
			assert.NoFileExists(t, path)
		})
	}
}
