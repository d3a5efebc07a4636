package config

import (
	"github.com/marmos91/ftserver/pkg/metrics"
)

// MetricsResult holds the metrics components built from configuration.
type MetricsResult struct {
	// Server exposes /metrics. Nil when metrics are disabled.
	Server *metrics.Server

	// FTMetrics is never nil; it is a no-op when metrics are disabled.
	FTMetrics metrics.FTMetrics
}

// InitializeMetrics initializes the global registry and the metrics server
// when cfg.Metrics.Enabled is set.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			FTMetrics: metrics.NewNoopFTMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:    metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		FTMetrics: metrics.NewFTMetrics(),
	}
}
