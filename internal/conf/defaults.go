// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/logger"
)

// Default values that are not owned by another package
const (
	DefaultBackend       = "malgo"
	DefaultFormat        = "f32"
	DefaultBitDepth      = 16
	DefaultMetricsListen = "localhost:8090"
)

// setDefaultConfig sets the default value of every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", "debug")

	v.SetDefault("audio.backend", DefaultBackend)
	v.SetDefault("audio.device", audiocore.DeviceDefault)
	v.SetDefault("audio.samplerate", audiocore.DefaultSampleRate)
	v.SetDefault("audio.inputchannels", 1)
	v.SetDefault("audio.outputchannels", 2)
	v.SetDefault("audio.framesperbuffer", audiocore.DefaultFramesPerBuffer)
	v.SetDefault("audio.ringperiods", audiocore.DefaultRingPeriods)
	v.SetDefault("audio.pollinterval", audiocore.DefaultPollInterval)
	v.SetDefault("audio.chunkframes", 0)
	v.SetDefault("audio.format", DefaultFormat)
	v.SetDefault("audio.bitdepth", DefaultBitDepth)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", DefaultMetricsListen)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
