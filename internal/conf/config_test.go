package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audiobridge/internal/audiocore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEmbeddedDefaultConfigIsValid(t *testing.T) {
	path := writeConfig(t, string(getDefaultConfig()))

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "malgo", settings.Audio.Backend)
	assert.Equal(t, 48000, settings.Audio.SampleRate)
	assert.Equal(t, 5*time.Millisecond, settings.Audio.PollInterval)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.False(t, settings.Metrics.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "audio:\n  backend: loopback\n  device: \"1\"\n  samplerate: 44100\n")

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "loopback", settings.Audio.Backend)
	assert.Equal(t, 44100, settings.Audio.SampleRate)
	assert.Equal(t, audiocore.DefaultFramesPerBuffer, settings.Audio.FramesPerBuffer)
	assert.Equal(t, audiocore.DefaultPollInterval, settings.Audio.PollInterval)
	assert.Equal(t, DefaultMetricsListen, settings.Metrics.Listen)

	cfg := settings.StreamConfig()
	require.NotNil(t, cfg.Device.Index)
	assert.Equal(t, 1, *cfg.Device.Index)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 1, cfg.InputChannels)
	assert.Equal(t, 2, cfg.OutputChannels)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUDIOBRIDGE_AUDIO_BACKEND", "loopback")
	t.Setenv("AUDIOBRIDGE_AUDIO_POLLINTERVAL", "2ms")
	t.Setenv("AUDIOBRIDGE_AUDIO_SAMPLERATE", "not-a-number")

	path := writeConfig(t, "audio:\n  samplerate: 22050\n")
	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "loopback", settings.Audio.Backend)
	assert.Equal(t, 2*time.Millisecond, settings.Audio.PollInterval)
	assert.Equal(t, 22050, settings.Audio.SampleRate, "invalid env value falls back to the file")
}

func TestLoadFileRejectsInvalidSettings(t *testing.T) {
	path := writeConfig(t, "audio:\n  backend: jack\n  bitdepth: 12\nsentry:\n  enabled: true\n")

	_, err := LoadFile(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
	assert.Contains(t, ve.Error(), "jack")
	assert.Contains(t, ve.Error(), "DSN")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDumpYAMLLoadsBack(t *testing.T) {
	path := writeConfig(t, "audio:\n  backend: loopback\n  pollinterval: 3ms\n  format: s16\n")
	settings, err := LoadFile(path)
	require.NoError(t, err)

	data, err := DumpYAML(settings)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pollinterval: 3ms")
	assert.Contains(t, string(data), "default_level: info")

	saved := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(saved, settings))

	reloaded, err := LoadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, settings.Audio, reloaded.Audio)
	assert.Equal(t, settings.Metrics, reloaded.Metrics)
}

func TestSampleFormat(t *testing.T) {
	s := &Settings{Audio: AudioSettings{Format: "S16"}}
	f, err := s.SampleFormat()
	require.NoError(t, err)
	assert.Equal(t, audiocore.FormatS16, f)
}

func TestAudioSettingsMarshalYAML(t *testing.T) {
	a := AudioSettings{Backend: "loopback", SampleRate: 48000, PollInterval: 7 * time.Millisecond}

	data, err := yaml.Marshal(a)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "pollinterval: 7ms")
	assert.Contains(t, out, "backend: loopback")
	assert.Contains(t, out, "samplerate: 48000")
	assert.NotContains(t, out, "plain")
}
