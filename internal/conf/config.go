// config.go: settings struct and the functions that load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
	"github.com/tphakala/audiobridge/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings selects the backend and device and sizes the stream.
type AudioSettings struct {
	Backend         string        `yaml:"backend"`         // malgo, loopback or portaudio
	Device          string        `yaml:"device"`          // device name, substring, ID or index
	SampleRate      int           `yaml:"samplerate"`      // sample rate in Hz
	InputChannels   int           `yaml:"inputchannels"`   // capture channels, 0 disables capture
	OutputChannels  int           `yaml:"outputchannels"`  // playback channels, 0 disables playback
	FramesPerBuffer int           `yaml:"framesperbuffer"` // frames per engine callback
	RingPeriods     int           `yaml:"ringperiods"`     // ring capacity in callback periods
	PollInterval    time.Duration `yaml:"-"`               // sleep between transfer chunks, see MarshalYAML
	ChunkFrames     int           `yaml:"chunkframes"`     // frames per transfer chunk, 0 uses FramesPerBuffer
	Format          string        `yaml:"format"`          // sample format of the stream
	BitDepth        int           `yaml:"bitdepth"`        // WAV recording bit depth
}

// MarshalYAML writes PollInterval as a duration string such as "5ms".
func (a AudioSettings) MarshalYAML() (any, error) {
	type plain AudioSettings
	return struct {
		plain        `yaml:",inline"`
		PollInterval string `yaml:"pollinterval"`
	}{plain(a), a.PollInterval.String()}, nil
}

// MetricsSettings controls the HTTP observability endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"` // serve /metrics, /health and /api/v1/streams
	Listen  string `yaml:"listen"`  // host:port to listen on
}

// SentrySettings controls error reporting. Off unless explicitly enabled.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings is the root of the configuration.
type Settings struct {
	Debug   bool                 `yaml:"debug"`
	Logging logger.LoggingConfig `yaml:"logging"`
	Audio   AudioSettings        `yaml:"audio"`
	Metrics MetricsSettings      `yaml:"metrics"`
	Sentry  SentrySettings       `yaml:"sentry"`
}

// StreamConfig converts the audio settings into a stream configuration.
func (s *Settings) StreamConfig() audiocore.StreamConfig {
	a := s.Audio
	return audiocore.StreamConfig{
		Device:          audiocore.ParseDeviceSpec(a.Device),
		InputChannels:   a.InputChannels,
		OutputChannels:  a.OutputChannels,
		SampleRate:      a.SampleRate,
		FramesPerBuffer: a.FramesPerBuffer,
		RingPeriods:     a.RingPeriods,
		PollInterval:    a.PollInterval,
		ChunkFrames:     a.ChunkFrames,
	}
}

// SampleFormat parses the configured sample format.
func (s *Settings) SampleFormat() (audiocore.SampleFormat, error) {
	return audiocore.ParseSampleFormat(s.Audio.Format)
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Component identifier for configuration errors
const ComponentConf = "configuration"

// Load reads the configuration file from the default locations and the
// environment, creating a default config file on first run.
func Load() (*Settings, error) {
	v := newViper()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}
	v.SetConfigName("config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, configError(err, "read")
		}
		if err := createDefaultConfig(v, configPaths[0]); err != nil {
			return nil, err
		}
	}

	return finishLoad(v)
}

// LoadFile reads settings from an explicit config file.
func LoadFile(path string) (*Settings, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(err).
			Component(ComponentConf).
			Category(errors.CategoryConfiguration).
			Context("operation", "read").
			Context("path", path).
			Build()
	}
	return finishLoad(v)
}

// newViper returns a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)
	bindEnvVars(v)
	return v
}

// finishLoad unmarshals and validates the settings, then stores them as
// the current instance.
func finishLoad(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, configError(err, "unmarshal")
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	if used := v.ConfigFileUsed(); used != "" {
		GetLogger().Debug("settings loaded", logger.String("path", used))
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// createDefaultConfig writes the embedded default config into dir and reads
// it back.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return configError(err, "create-config-dir")
	}
	if err := os.WriteFile(configPath, getDefaultConfig(), 0o644); err != nil {
		return configError(err, "write-default-config")
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return configError(err, "read")
	}
	return nil
}

// getDefaultConfig returns the embedded default config.yaml.
func getDefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// the file is embedded at build time
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return data
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DumpYAML renders settings as YAML in the config file layout.
func DumpYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, configError(err, "marshal")
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically; comments in the old file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := DumpYAML(settings)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return configError(err, "create-temp")
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return configError(err, "write-temp")
	}
	if err := tempFile.Close(); err != nil {
		return configError(err, "close-temp")
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return configError(err, "rename")
	}
	return nil
}

func configError(err error, operation string) error {
	return errors.New(err).
		Component(ComponentConf).
		Category(errors.CategoryConfiguration).
		Context("operation", operation).
		Build()
}
