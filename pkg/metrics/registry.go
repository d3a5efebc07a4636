// Package metrics provides Prometheus metrics collection for the file
// transfer server.
//
// All metrics are optional - if InitRegistry is never called, constructors
// return no-op implementations and the server runs without collection.
//
// Usage:
//
//	metrics.InitRegistry()
//	ftMetrics := metrics.NewFTMetrics()
//	adapter := ft.New(config, ftMetrics)
//
//	// Or use nil for no-op behavior
//	adapter := ft.New(config, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and read afterwards
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Subsequent calls
// are ignored.
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
