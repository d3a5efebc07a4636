package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"
server:
  root_directory: "/srv/ft"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "/srv/ft", cfg.Server.RootDirectory)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Zero(t, cfg.Server.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.MetricsLogInterval)
	assert.Equal(t, 4096, cfg.Transfer.ChunkSize)
	assert.Equal(t, 4096, cfg.Transfer.MaxCommandLine)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "none", cfg.Journal.Type)
	assert.False(t, cfg.Mirror.Enabled)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 2121
  root_directory: "./data"
  max_connections: 64
  connections_per_second: 20
  shutdown_timeout: 5s
transfer:
  chunk_size: 65536
metrics:
  enabled: true
  port: 9100
journal:
  type: badger
  badger:
    path: /var/lib/ftserver/journal
    retention: 72h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Address)
	assert.Equal(t, 2121, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.MaxConnections)
	assert.Equal(t, uint(20), cfg.Server.ConnectionsPerSecond)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 65536, cfg.Transfer.ChunkSize)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "badger", cfg.Journal.Type)
	assert.Equal(t, "/var/lib/ftserver/journal", cfg.Journal.Badger["path"])
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 2121\n")
	t.Setenv("FTSERVER_SERVER_PORT", "3131")
	t.Setenv("FTSERVER_LOGGING_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3131, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().Server, cfg.Server)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad log level", content: "logging:\n  level: loud\n"},
		{name: "bad log format", content: "logging:\n  format: xml\n"},
		{name: "port out of range", content: "server:\n  port: 70000\n"},
		{name: "negative max connections", content: "server:\n  max_connections: -1\n"},
		{name: "tiny chunk", content: "transfer:\n  chunk_size: 16\n"},
		{name: "unknown journal", content: "journal:\n  type: sqlite\n"},
		{name: "metrics on server port", content: "metrics:\n  enabled: true\n  port: 8080\n"},
		{name: "mirror without bucket", content: "mirror:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "ftserver", "config.yaml"), GetDefaultConfigPath())
}

func TestAdapterConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Address = "0.0.0.0"
	cfg.Server.MaxConnections = 3

	ac := AdapterConfig(cfg)
	assert.Equal(t, "0.0.0.0", ac.Address)
	assert.Equal(t, 8080, ac.Port)
	assert.Equal(t, "./ft_root", ac.RootDirectory)
	assert.Equal(t, 3, ac.MaxConnections)
	assert.Equal(t, 4096, ac.ChunkSize)

	a := CreateAdapter(cfg, nil)
	assert.Equal(t, 8080, a.Port())
}
