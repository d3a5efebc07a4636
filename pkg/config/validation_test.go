package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultConfig(t *testing.T) {
	require.NoError(t, Validate(GetDefaultConfig()))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "LOUD" },
			wantErr: "Level",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "missing root",
			mutate:  func(c *Config) { c.Server.RootDirectory = "" },
			wantErr: "RootDirectory",
		},
		{
			name:    "chunk too small",
			mutate:  func(c *Config) { c.Transfer.ChunkSize = 1 },
			wantErr: "ChunkSize",
		},
		{
			name:    "unknown journal",
			mutate:  func(c *Config) { c.Journal.Type = "postgres" },
			wantErr: "Type",
		},
		{
			name: "metrics port collides with server",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = c.Server.Port
			},
			wantErr: "metrics.port",
		},
		{
			name: "mirror without bucket",
			mutate: func(c *Config) {
				c.Mirror.Enabled = true
				c.Mirror.S3 = map[string]any{"region": "us-east-1"}
			},
			wantErr: "mirror.s3.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_MetricsPortIgnoredWhenDisabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = cfg.Server.Port

	assert.NoError(t, Validate(cfg))
}

func TestValidate_MirrorWithBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Mirror.Enabled = true
	cfg.Mirror.S3 = map[string]any{"region": "us-east-1", "bucket": "uploads"}

	assert.NoError(t, Validate(cfg))
}
