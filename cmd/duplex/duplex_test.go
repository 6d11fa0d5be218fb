package duplex

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunCapturesPlayedTone(t *testing.T) {
	for _, format := range []string{"f32", "s16"} {
		t.Run(format, func(t *testing.T) {
			app := testutil.LoopbackApp(t, "loopback", format, 1, 1)
			report, err := Run(t.Context(), app, Options{
				Duration:  300 * time.Millisecond,
				Frequency: 400,
				Amplitude: 0.5,
			})
			require.NoError(t, err)
			require.NoError(t, app.Close())

			assert.Equal(t, 2400, report.Written)
			assert.Equal(t, 2400, report.Captured)
			assert.True(t, report.Detected, "tone not captured")
			assert.InDelta(t, 0.5, report.Peak, 0.01)
			assert.Positive(t, report.RMS)
			assert.Less(t, report.Latency, 300*time.Millisecond)
			require.NotNil(t, report.Stats.Sink)
			assert.Equal(t, uint64(2400), report.Stats.Sink.TransferredFrames)

			var out bytes.Buffer
			require.NoError(t, report.Print(&out))
			assert.Contains(t, out.String(), "tone seen: yes")
			assert.Contains(t, out.String(), "Loopback")
		})
	}
}

func TestRunExtraInputChannelsAreSilent(t *testing.T) {
	app := testutil.LoopbackApp(t, "loopback", "f32", 2, 1)
	report, err := Run(t.Context(), app, Options{
		Duration:  200 * time.Millisecond,
		Frequency: 400,
		Amplitude: 0.8,
	})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	assert.True(t, report.Detected)
	// Half the captured samples are silence, so RMS is below a full sine's
	assert.Less(t, report.RMS, 0.8/1.414)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		inputs  int
		outputs int
		opts    Options
	}{
		{"no inputs", 0, 1, Options{Duration: time.Second, Frequency: 440, Amplitude: 0.5}},
		{"no outputs", 1, 0, Options{Duration: time.Second, Frequency: 440, Amplitude: 0.5}},
		{"zero duration", 1, 1, Options{Frequency: 440, Amplitude: 0.5}},
		{"frequency above nyquist", 1, 1, Options{Duration: time.Second, Frequency: 5000, Amplitude: 0.5}},
		{"amplitude too high", 1, 1, Options{Duration: time.Second, Frequency: 440, Amplitude: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(t.Context(), testutil.LoopbackApp(t, "loopback", "f32", tt.inputs, tt.outputs), tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}
