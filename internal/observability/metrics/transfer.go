package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/errors"
)

// TransferRecorder records the outcome of blocking transfers. Application
// code depends on this interface rather than on Prometheus types.
type TransferRecorder interface {
	RecordTransfer(direction string, frames int, elapsed time.Duration, err error)
}

// TransferMetrics contains Prometheus metrics for application transfers
type TransferMetrics struct {
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	transferFrames   *prometheus.HistogramVec
}

// NewTransferMetrics creates and registers transfer metrics
func NewTransferMetrics(registry *prometheus.Registry) (*TransferMetrics, error) {
	m := &TransferMetrics{
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transfers_total",
				Help:      "Blocking transfers by direction and outcome",
			},
			[]string{"direction", "status"},
		),
		transferDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Time a blocking transfer spent queued and moving frames",
				Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
			},
			[]string{"direction"},
		),
		transferFrames: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "transfer_frames",
				Help:      "Frames moved per blocking transfer",
				Buckets:   prometheus.ExponentialBuckets(BucketStart64Frames, BucketFactor2, BucketCount12),
			},
			[]string{"direction"},
		),
	}

	for _, c := range []prometheus.Collector{m.transfersTotal, m.transferDuration, m.transferFrames} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordTransfer implements TransferRecorder
func (m *TransferMetrics) RecordTransfer(direction string, frames int, elapsed time.Duration, err error) {
	m.transfersTotal.WithLabelValues(direction, transferStatus(err)).Inc()
	m.transferDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
	m.transferFrames.WithLabelValues(direction).Observe(float64(frames))
}

func transferStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, audiocore.ErrStreamClosed):
		return StatusClosed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return StatusTimeout
	default:
		return StatusError
	}
}

// NopRecorder discards transfer records.
type NopRecorder struct{}

// RecordTransfer implements TransferRecorder
func (NopRecorder) RecordTransfer(string, int, time.Duration, error) {}
