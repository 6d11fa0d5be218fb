// Package observability serves Prometheus metrics, stream health and the
// open stream list over HTTP.
package observability

import "github.com/tphakala/audiobridge/internal/logger"

// GetLogger returns the observability module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("observability")
}
