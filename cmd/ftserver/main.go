package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/ftserver/config.yaml)")
	address := flag.String("a", "", "Address to listen on (overrides server.address)")
	port := flag.Int("p", 0, "Port to listen on (overrides server.port)")
	root := flag.String("d", "", "Root directory to serve (overrides server.root_directory)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides logging.level)")
	initConfig := flag.Bool("init", false, "Write a default config file and exit")
	force := flag.Bool("force", false, "With -init, overwrite an existing config file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -a server_address -p server_port -d root_directory [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.InitConfigToPath(path, *force); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags given explicitly win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.Server.Address = *address
		case "p":
			cfg.Server.Port = *port
		case "d":
			cfg.Server.RootDirectory = *root
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	return logger.SetOutput(cfg.Output)
}

// ensureRoot creates the served directory if it does not exist yet.
func ensureRoot(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("root %s is not a directory", dir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("directory creation failed: %w", err)
	}
	logger.Info("Created root directory %s", dir)
	return nil
}

func run(cfg *config.Config) error {
	if err := setupLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	if err := ensureRoot(cfg.Server.RootDirectory); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	ftAdapter := config.CreateAdapter(cfg, metricsResult.FTMetrics)

	jrnl, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			logger.Warn("Journal close: %v", err)
		}
	}()
	ftAdapter.SetJournal(jrnl)

	mirror, err := config.CreateMirror(ctx, &cfg.Mirror, ftAdapter.Registry())
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}
	if mirror != nil {
		// Uploads already queued finish even after a shutdown signal
		mirror.Start(context.Background())
		defer mirror.Close()
		ftAdapter.SetMirror(mirror)
	}

	logger.Info("ftserver starting: address=%q port=%d root=%s", cfg.Server.Address, cfg.Server.Port, cfg.Server.RootDirectory)
	if cfg.Server.MaxConnections > 0 {
		logger.Info("  Max connections: %d", cfg.Server.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Journal: %s", cfg.Journal.Type)
	logger.Info("  Mirror: %v", cfg.Mirror.Enabled)

	err = ftAdapter.Serve(ctx)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
