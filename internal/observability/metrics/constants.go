// Package metrics provides the Prometheus metrics served by the
// observability endpoint.
package metrics

import "time"

// Namespace prefixes every audiobridge metric name.
const Namespace = "audiobridge"

// Label values for the status label.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusClosed  = "closed"
	StatusTimeout = "timeout"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0
	// BucketStart64Frames is the starting bucket for frame count histograms.
	BucketStart64Frames = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the endpoint.
const ShutdownTimeout = 5 * time.Second
