package config

import (
	"context"
	"testing"

	"github.com/marmos91/ftserver/pkg/journal"
	journalbadger "github.com/marmos91/ftserver/pkg/journal/badger"
	journalmemory "github.com/marmos91/ftserver/pkg/journal/memory"
	"github.com/marmos91/ftserver/pkg/locking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("None", func(t *testing.T) {
		j, err := CreateJournal(ctx, &JournalConfig{Type: "none"})
		require.NoError(t, err)
		assert.IsType(t, journal.Nop{}, j)
	})

	t.Run("Memory", func(t *testing.T) {
		j, err := CreateJournal(ctx, &JournalConfig{
			Type:   "memory",
			Memory: map[string]any{"capacity": "8"},
		})
		require.NoError(t, err)
		defer j.Close()
		assert.IsType(t, &journalmemory.Journal{}, j)
	})

	t.Run("Badger", func(t *testing.T) {
		j, err := CreateJournal(ctx, &JournalConfig{
			Type:   "badger",
			Badger: map[string]any{"path": t.TempDir(), "retention": "24h"},
		})
		require.NoError(t, err)
		defer j.Close()
		assert.IsType(t, &journalbadger.Journal{}, j)
	})

	t.Run("BadgerWithoutPath", func(t *testing.T) {
		_, err := CreateJournal(ctx, &JournalConfig{Type: "badger"})
		assert.Error(t, err)
	})

	t.Run("UnknownOption", func(t *testing.T) {
		_, err := CreateJournal(ctx, &JournalConfig{
			Type:   "memory",
			Memory: map[string]any{"size": 8},
		})
		assert.Error(t, err)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CreateJournal(ctx, &JournalConfig{Type: "sqlite"})
		assert.Error(t, err)
	})
}

func TestCreateMirror(t *testing.T) {
	ctx := context.Background()
	reg := locking.NewRegistry()

	t.Run("Disabled", func(t *testing.T) {
		m, err := CreateMirror(ctx, &MirrorConfig{}, reg)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("MissingBucket", func(t *testing.T) {
		_, err := CreateMirror(ctx, &MirrorConfig{
			Enabled: true,
			S3:      map[string]any{"region": "us-east-1"},
		}, reg)
		assert.Error(t, err)
	})

	t.Run("MissingRegion", func(t *testing.T) {
		_, err := CreateMirror(ctx, &MirrorConfig{
			Enabled: true,
			S3:      map[string]any{"bucket": "b"},
		}, reg)
		assert.Error(t, err)
	})

	t.Run("CustomEndpoint", func(t *testing.T) {
		m, err := CreateMirror(ctx, &MirrorConfig{
			Enabled: true,
			S3: map[string]any{
				"region":            "us-east-1",
				"bucket":            "uploads",
				"key_prefix":        "ft/",
				"endpoint":          "http://localhost:9000",
				"access_key_id":     "minio",
				"secret_access_key": "minio123",
				"workers":           4,
			},
		}, reg)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "ft/a.txt", m.ObjectKey("a.txt"))
	})
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	res := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, res.Server)
	assert.NotNil(t, res.FTMetrics)
}
