package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// contentMetrics is the Prometheus implementation of metrics.ContentMetrics.
type contentMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewContentMetrics returns ContentMetrics labelled with the backend type
// ("memory", "filesystem", "s3"), or a no-op when metrics are disabled.
func NewContentMetrics(storeType string) metrics.ContentMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopContentMetrics()
	}
	return NewContentMetricsWith(metrics.GetRegistry(), storeType)
}

// NewContentMetricsWith registers the content metrics on reg.
func NewContentMetricsWith(reg prometheus.Registerer, storeType string) metrics.ContentMetrics {
	labels := prometheus.Labels{"store_type": storeType}
	return &contentMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittodrive_content_operations_total",
				Help:        "Total number of content store operations by operation and status",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "dittodrive_content_operation_duration_seconds",
				Help:        "Duration of content store operations in seconds",
				ConstLabels: labels,
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.25,  // 250ms
					1.0,   // 1s
					5.0,   // 5s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "dittodrive_content_bytes_total",
				Help:        "Total bytes written to and read from the content store",
				ConstLabels: labels,
			},
			[]string{"direction"},
		),
	}
}

func (m *contentMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, metrics.StatusOf(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *contentMetrics) RecordBytes(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}
