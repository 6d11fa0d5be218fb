package config

import "github.com/tphakala/audiobridge/internal/logger"

// GetLogger returns the application logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}
