// env.go - environment variable overrides for audiobridge settings
package conf

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/audiobridge/internal/logger"
)

// EnvPrefix prefixes every environment variable the settings read
const EnvPrefix = "AUDIOBRIDGE_"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", EnvPrefix + "DEBUG", validateEnvBool},
		{"logging.default_level", EnvPrefix + "LOG_LEVEL", validateEnvLogLevel},

		// Audio
		{"audio.backend", EnvPrefix + "AUDIO_BACKEND", validateEnvBackend},
		{"audio.device", EnvPrefix + "AUDIO_DEVICE", nil},
		{"audio.samplerate", EnvPrefix + "AUDIO_SAMPLERATE", validateEnvPositiveInt},
		{"audio.inputchannels", EnvPrefix + "AUDIO_INPUTCHANNELS", validateEnvNonNegativeInt},
		{"audio.outputchannels", EnvPrefix + "AUDIO_OUTPUTCHANNELS", validateEnvNonNegativeInt},
		{"audio.framesperbuffer", EnvPrefix + "AUDIO_FRAMESPERBUFFER", validateEnvPositiveInt},
		{"audio.ringperiods", EnvPrefix + "AUDIO_RINGPERIODS", validateEnvPositiveInt},
		{"audio.pollinterval", EnvPrefix + "AUDIO_POLLINTERVAL", validateEnvDuration},
		{"audio.format", EnvPrefix + "AUDIO_FORMAT", nil},

		// Metrics endpoint
		{"metrics.enabled", EnvPrefix + "METRICS_ENABLED", validateEnvBool},
		{"metrics.listen", EnvPrefix + "METRICS_LISTEN", nil},

		// Error reporting
		{"sentry.enabled", EnvPrefix + "SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", EnvPrefix + "SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every environment variable that is unset or valid.
// Invalid values are skipped with a warning so the file value applies.
func bindEnvVars(v *viper.Viper) []string {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: %v", binding.EnvVar, envValue, err))
					continue
				}
			}
		}

		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
		}
	}

	for _, w := range warnings {
		GetLogger().Warn("environment override rejected", logger.String("reason", w))
	}
	return warnings
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer")
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("not a duration such as 5ms: %w", err)
	}
	return nil
}

func validateEnvBackend(value string) error {
	if !isKnownBackend(value) {
		return fmt.Errorf("unknown backend, expected one of %v", Backends)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !isKnownLogLevel(value) {
		return fmt.Errorf("unknown log level, expected one of %v", logLevels)
	}
	return nil
}
