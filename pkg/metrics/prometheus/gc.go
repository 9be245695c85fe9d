package prometheus

import (
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type gcMetrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	payloadsTotal   *prometheus.CounterVec
	lastOrphanCount prometheus.Gauge
}

// NewGCMetrics returns GCMetrics on the global registry, or a no-op when
// metrics are disabled.
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}
	return NewGCMetricsWith(metrics.GetRegistry())
}

// NewGCMetricsWith registers the GC metrics on reg.
func NewGCMetricsWith(reg prometheus.Registerer) metrics.GCMetrics {
	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_gc_runs_total",
				Help: "Total number of orphan collection runs by status",
			},
			[]string{"status"},
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittodrive_gc_run_duration_seconds",
				Help:    "Duration of orphan collection runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		payloadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodrive_gc_payloads_total",
				Help: "Payloads visited by the collector by outcome",
			},
			[]string{"outcome"},
		),
		lastOrphanCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittodrive_gc_last_orphan_count",
				Help: "Orphaned payloads found by the most recent run",
			},
		),
	}
}

func (m *gcMetrics) RecordRun(stats metrics.GCStats, duration time.Duration, err error) {
	m.runsTotal.WithLabelValues(metrics.StatusOf(err)).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.payloadsTotal.WithLabelValues("scanned").Add(float64(stats.Scanned))
	m.payloadsTotal.WithLabelValues("deleted").Add(float64(stats.Deleted))
	m.payloadsTotal.WithLabelValues("failed").Add(float64(stats.Failed))
	m.lastOrphanCount.Set(float64(stats.Orphaned))
}
