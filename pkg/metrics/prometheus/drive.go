// Package prometheus provides Prometheus-backed implementations of the
// interfaces in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// driveMetrics is the Prometheus implementation of metrics.DriveMetrics.
type driveMetrics struct {
	operationsTotal       *prometheus.CounterVec
	operationDuration     *prometheus.HistogramVec
	quotaRejections       prometheus.Counter
	payloadBytes          *prometheus.CounterVec
	payloadDeleteFailures prometheus.Counter
}

// NewDriveMetrics returns DriveMetrics on the global registry, or a no-op
// implementation when metrics are disabled.
func NewDriveMetrics() metrics.DriveMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopDriveMetrics()
	}
	return NewDriveMetricsWith(metrics.GetRegistry())
}

// NewDriveMetricsWith registers the drive metrics on reg.
func NewDriveMetricsWith(reg prometheus.Registerer) metrics.DriveMetrics {
	return &driveMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_operations_total",
				Help: "Total number of drive operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodrive_operation_duration_seconds",
				Help: "Duration of drive operations in seconds",
				Buckets: []float64{
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.025,  // 25ms
					0.1,    // 100ms
					0.5,    // 500ms
					2.5,    // 2.5s
					10,     // 10s
				},
			},
			[]string{"operation"},
		),
		quotaRejections: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrive_quota_rejections_total",
				Help: "Total number of writes rejected because the owner's quota was exhausted",
			},
		),
		payloadBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_payload_bytes_total",
				Help: "Total payload bytes uploaded and downloaded",
			},
			[]string{"direction"},
		),
		payloadDeleteFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodrive_payload_delete_failures_total",
				Help: "Payloads left behind after their node was deleted",
			},
		),
	}
}

func (m *driveMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, metrics.StatusOf(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *driveMetrics) RecordQuotaRejection() {
	m.quotaRejections.Inc()
}

func (m *driveMetrics) RecordPayloadBytes(direction string, bytes int64) {
	m.payloadBytes.WithLabelValues(direction).Add(float64(bytes))
}

func (m *driveMetrics) RecordPayloadDeleteFailure() {
	m.payloadDeleteFailures.Inc()
}
