package config

import (
	"context"

	"github.com/marmos91/dittodrive/pkg/metrics"
	promMetrics "github.com/marmos91/dittodrive/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server exposes /metrics and /healthz (nil if disabled)
	Server *metrics.Server

	// Drive, Content and GC are never nil; they are no-ops when disabled
	Drive   metrics.DriveMetrics
	Content metrics.ContentMetrics
	GC      metrics.GCMetrics
}

// InitializeMetrics creates the metrics components described by cfg.
//
// When metrics are enabled the global Prometheus registry is initialized and
// Prometheus-backed collectors are returned. Otherwise every collector is a
// no-op and Server is nil. health backs the /healthz endpoint.
func InitializeMetrics(cfg *Config, health func(ctx context.Context) error) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Drive:   metrics.NewNoopDriveMetrics(),
			Content: metrics.NewNoopContentMetrics(),
			GC:      metrics.NewNoopGCMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port:   cfg.Server.Metrics.Port,
			Health: health,
		}),
		Drive:   promMetrics.NewDriveMetrics(),
		Content: promMetrics.NewContentMetrics(cfg.Content.Type),
		GC:      promMetrics.NewGCMetrics(),
	}
}
