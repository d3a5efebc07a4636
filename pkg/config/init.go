package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# ftserver configuration file
#
# Every key can be overridden with an environment variable named
# FTSERVER_<SECTION>_<KEY>, for example FTSERVER_SERVER_PORT=9000.
# Durations accept Go syntax: 30s, 5m, 24h.

`

// InitConfig writes the default configuration to GetDefaultConfigPath and
// returns that path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(sampleConfig(GetDefaultConfig()))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// sampleConfig renders cfg with the same keys Load reads. Durations are
// written as strings so the file stays readable.
func sampleConfig(cfg *Config) map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
			"output": cfg.Logging.Output,
		},
		"server": map[string]any{
			"address":                cfg.Server.Address,
			"port":                   cfg.Server.Port,
			"root_directory":         cfg.Server.RootDirectory,
			"max_connections":        cfg.Server.MaxConnections,
			"connections_per_second": cfg.Server.ConnectionsPerSecond,
			"shutdown_timeout":       cfg.Server.ShutdownTimeout.String(),
			"metrics_log_interval":   cfg.Server.MetricsLogInterval.String(),
		},
		"transfer": map[string]any{
			"chunk_size":       cfg.Transfer.ChunkSize,
			"max_command_line": cfg.Transfer.MaxCommandLine,
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
			"port":    cfg.Metrics.Port,
		},
		"journal": map[string]any{
			"type":   cfg.Journal.Type,
			"badger": cfg.Journal.Badger,
		},
		"mirror": map[string]any{
			"enabled": cfg.Mirror.Enabled,
			"s3":      cfg.Mirror.S3,
		},
	}
}
