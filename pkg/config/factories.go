package config

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/pkg/journal"
	journalbadger "github.com/marmos91/ftserver/pkg/journal/badger"
	journalmemory "github.com/marmos91/ftserver/pkg/journal/memory"
	"github.com/marmos91/ftserver/pkg/locking"
	"github.com/marmos91/ftserver/pkg/mirror"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes a backend options map into out. Duration fields
// accept strings such as "24h".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// CreateJournal creates the journal selected by cfg.Type.
func CreateJournal(ctx context.Context, cfg *JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "none", "":
		return journal.Nop{}, nil
	case "memory":
		return createMemoryJournal(cfg.Memory)
	case "badger":
		return createBadgerJournal(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown journal type: %q", cfg.Type)
	}
}

func createMemoryJournal(options map[string]any) (journal.Journal, error) {
	var memCfg struct {
		Capacity int `mapstructure:"capacity"`
	}
	if err := decodeOptions(options, &memCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory journal config: %w", err)
	}

	logger.Info("Memory journal initialized: capacity=%d", memCfg.Capacity)
	return journalmemory.New(memCfg.Capacity), nil
}

func createBadgerJournal(ctx context.Context, options map[string]any) (journal.Journal, error) {
	var badgerCfg struct {
		Path      string        `mapstructure:"path"`
		Retention time.Duration `mapstructure:"retention"`
	}
	if err := decodeOptions(options, &badgerCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger journal config: %w", err)
	}
	if badgerCfg.Path == "" {
		return nil, fmt.Errorf("badger journal: path is required")
	}

	j, err := journalbadger.Open(ctx, journalbadger.Config{
		Path:      badgerCfg.Path,
		Retention: badgerCfg.Retention,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Badger journal initialized: path=%s retention=%s", badgerCfg.Path, badgerCfg.Retention)
	return j, nil
}

// CreateMirror builds the S3 mirror, or returns nil when it is disabled.
// The mirror takes its locks from registry so uploads to S3 never read a
// file while a WRITE to it is in progress.
func CreateMirror(ctx context.Context, cfg *MirrorConfig, registry *locking.Registry) (*mirror.Mirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var s3Cfg struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
		Workers         int    `mapstructure:"workers"`
		QueueSize       int    `mapstructure:"queue_size"`
	}
	if err := decodeOptions(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 mirror config: %w", err)
	}
	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 mirror: bucket is required")
	}

	client, err := mirror.NewS3Client(ctx, mirror.S3Config{
		Region:          s3Cfg.Region,
		Endpoint:        s3Cfg.Endpoint,
		AccessKeyID:     s3Cfg.AccessKeyID,
		SecretAccessKey: s3Cfg.SecretAccessKey,
		MaxRetries:      s3Cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	return mirror.New(client, registry, mirror.Config{
		Bucket:    s3Cfg.Bucket,
		KeyPrefix: s3Cfg.KeyPrefix,
		Workers:   s3Cfg.Workers,
		QueueSize: s3Cfg.QueueSize,
	})
}
