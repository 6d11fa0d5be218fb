// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// Backends lists the audio backend names the CLI understands. portaudio is
// only available in builds with the portaudio tag.
var Backends = []string{"malgo", "loopback", "portaudio"}

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

func isKnownBackend(name string) bool {
	return slices.Contains(Backends, strings.ToLower(name))
}

func isKnownLogLevel(level string) bool {
	return slices.Contains(logLevels, strings.ToLower(level))
}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateLoggingSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateAudioSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMetricsSettings(&settings.Metrics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(settings *Settings) error {
	cfg := &settings.Logging
	if cfg.DefaultLevel != "" && !isKnownLogLevel(cfg.DefaultLevel) {
		return fmt.Errorf("unknown log level %q", cfg.DefaultLevel)
	}
	if cfg.Console != nil && cfg.Console.Level != "" && !isKnownLogLevel(cfg.Console.Level) {
		return fmt.Errorf("unknown console log level %q", cfg.Console.Level)
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled {
		if cfg.FileOutput.Path == "" {
			return fmt.Errorf("log file output is enabled but no path is set")
		}
		if cfg.FileOutput.Level != "" && !isKnownLogLevel(cfg.FileOutput.Level) {
			return fmt.Errorf("unknown file log level %q", cfg.FileOutput.Level)
		}
	}
	for module, level := range cfg.ModuleLevels {
		if !isKnownLogLevel(level) {
			return fmt.Errorf("unknown log level %q for module %s", level, module)
		}
	}
	return nil
}

// validateAudioSettings checks the backend and format names and runs the
// stream configuration through audiocore's own validation.
func validateAudioSettings(settings *Settings) error {
	a := &settings.Audio
	if !isKnownBackend(a.Backend) {
		return fmt.Errorf("unknown audio backend %q, expected one of %v", a.Backend, Backends)
	}
	if _, err := settings.SampleFormat(); err != nil {
		return fmt.Errorf("audio format: %w", err)
	}
	switch a.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("audio bit depth must be 8, 16, 24 or 32, got %d", a.BitDepth)
	}

	cfg := settings.StreamConfig().WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}

func validateMetricsSettings(settings *MetricsSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", settings.Listen, err)
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("sentry is enabled but no DSN is set")
	}
	return nil
}
