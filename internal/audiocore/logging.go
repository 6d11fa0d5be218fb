package audiocore

import "github.com/tphakala/audiobridge/internal/logger"

// GetLogger returns the audiocore logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audio")
}
