package config

import (
	"github.com/marmos91/ftserver/pkg/adapter/ft"
	"github.com/marmos91/ftserver/pkg/metrics"
)

// AdapterConfig maps the server and transfer sections onto the adapter's
// own configuration.
func AdapterConfig(cfg *Config) ft.Config {
	return ft.Config{
		Address:              cfg.Server.Address,
		Port:                 cfg.Server.Port,
		RootDirectory:        cfg.Server.RootDirectory,
		MaxConnections:       cfg.Server.MaxConnections,
		ConnectionsPerSecond: cfg.Server.ConnectionsPerSecond,
		ShutdownTimeout:      cfg.Server.ShutdownTimeout,
		MetricsLogInterval:   cfg.Server.MetricsLogInterval,
		ChunkSize:            cfg.Transfer.ChunkSize,
		MaxCommandLine:       cfg.Transfer.MaxCommandLine,
	}
}

// CreateAdapter creates the file transfer adapter. A nil ftMetrics disables
// collection.
func CreateAdapter(cfg *Config, ftMetrics metrics.FTMetrics) *ft.Adapter {
	return ft.New(AdapterConfig(cfg), ftMetrics)
}
