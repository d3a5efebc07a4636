package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete server configuration.
//
// Values come from, in increasing precedence: defaults, the config file,
// FTSERVER_* environment variables and command line flags applied by the
// caller.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`

	Server ServerConfig `mapstructure:"server"`

	Transfer TransferConfig `mapstructure:"transfer"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	Journal JournalConfig `mapstructure:"journal"`

	Mirror MirrorConfig `mapstructure:"mirror"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig controls the listener and the served tree.
type ServerConfig struct {
	// Address to bind. Empty binds all interfaces.
	Address string `mapstructure:"address"`

	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// RootDirectory is created with mode 0700 if missing.
	RootDirectory string `mapstructure:"root_directory" validate:"required"`

	// MaxConnections caps concurrent connections. 0 is unbounded.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// ConnectionsPerSecond throttles accepts. 0 disables throttling.
	ConnectionsPerSecond uint `mapstructure:"connections_per_second"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MetricsLogInterval is the period of the status log line. Negative
	// disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval"`
}

// TransferConfig controls buffer sizes.
type TransferConfig struct {
	ChunkSize int `mapstructure:"chunk_size" validate:"min=512,max=16777216"`

	MaxCommandLine int `mapstructure:"max_command_line" validate:"min=64,max=1048576"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// JournalConfig selects where served commands are recorded.
type JournalConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=none memory badger"`

	// Memory options: capacity
	Memory map[string]any `mapstructure:"memory"`

	// Badger options: path, retention
	Badger map[string]any `mapstructure:"badger"`
}

// MirrorConfig controls copying completed uploads to S3.
type MirrorConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// S3 options: region, bucket, key_prefix, endpoint, access_key_id,
	// secret_access_key, max_retries, workers, queue_size
	S3 map[string]any `mapstructure:"s3"`
}

// Load reads configuration from configPath, or from the default location
// when configPath is empty, then applies defaults and validates.
// A missing file at the default location is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FTSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.address", "server.port", "server.root_directory",
	"server.max_connections", "server.connections_per_second",
	"server.shutdown_timeout", "server.metrics_log_interval",
	"transfer.chunk_size", "transfer.max_command_line",
	"metrics.enabled", "metrics.port",
	"journal.type", "mirror.enabled",
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ftserver")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ftserver")
}

// GetDefaultConfigPath returns the path Load reads when given no path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
