package play

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

func TestRunPlaysWholeFile(t *testing.T) {
	for _, format := range []string{"f32", "s32", "s16", "s8", "u8"} {
		t.Run(format, func(t *testing.T) {
			path := testutil.WriteRamp(t, 1600, 2)
			app := testutil.LoopbackApp(t, "null", format, 0, 2)

			ctx, cancel := context.WithTimeout(t.Context(), testutil.DefaultTestTimeout)
			defer cancel()

			start := time.Now()
			require.NoError(t, Run(ctx, app, path, 500))
			require.NoError(t, app.Close())

			// 1600 frames at 8 kHz take 200ms to play on a real-time device
			assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
		})
	}
}

func TestRunCancelledIsNotAnError(t *testing.T) {
	path := testutil.WriteRamp(t, 80000, 1)
	app := testutil.LoopbackApp(t, "null", "f32", 0, 1)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	start := time.Now()
	require.NoError(t, Run(ctx, app, path, DefaultChunkFrames))
	require.NoError(t, app.Close())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunRejects(t *testing.T) {
	dir := t.TempDir()

	t.Run("unsupported extension", func(t *testing.T) {
		err := Run(t.Context(), testutil.LoopbackApp(t, "null", "f32", 0, 1), filepath.Join(dir, "song.aiff"), 512)
		assert.ErrorIs(t, err, audiofile.ErrUnsupportedFormat)
	})

	t.Run("non-positive chunk", func(t *testing.T) {
		err := Run(t.Context(), testutil.LoopbackApp(t, "null", "f32", 0, 1), testutil.WriteRamp(t, 10, 1), 0)
		assert.Error(t, err)
	})

	t.Run("unknown sample format", func(t *testing.T) {
		err := Run(t.Context(), testutil.LoopbackApp(t, "null", "f16", 0, 1), testutil.WriteRamp(t, 10, 1), 512)
		assert.Error(t, err)
	})
}
