// Package metrics provides Prometheus metrics collection for DittoDrive.
//
// All metrics are optional. Components receive an interface and fall back to
// a no-op implementation when metrics are disabled, so the engines never
// check whether collection is on.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Build implementations from pkg/metrics/prometheus
//	driveMetrics := prometheus.NewDriveMetrics()
//
//	// Or pass nil / a no-op for no collection
//	engine := hierarchy.New(store, payloads, hierarchy.Options{})
package metrics

import (
	"sync"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all DittoDrive metrics.
	// Written once by InitRegistry.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Subsequent calls
// are ignored.
//
// If never called, GetRegistry returns nil and the constructors in
// pkg/metrics/prometheus return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// StatusOf maps an operation error to a low-cardinality status label:
// "success", the StoreError code, or "error" for infrastructure failures.
func StatusOf(err error) string {
	if err == nil {
		return "success"
	}
	if code, ok := metadata.CodeOf(err); ok {
		return code.String()
	}
	return "error"
}
