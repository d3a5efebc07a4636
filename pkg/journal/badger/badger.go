// Package badger provides a Journal persisted in BadgerDB.
//
// Keys are "j:" followed by the big-endian start time in nanoseconds and the
// entry ID, so a reverse prefix scan yields the newest entries first.
// Values are JSON-encoded journal.Entry records.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/pkg/journal"
)

const prefixEntry = "j:"

// Config configures the badger journal.
type Config struct {
	// Path is the database directory. Created if missing.
	Path string

	// Retention expires entries after this long. Zero keeps them forever.
	Retention time.Duration

	// InMemory runs badger without touching disk. Used in tests.
	InMemory bool
}

// Journal stores entries in a badger database.
type Journal struct {
	db        *badgerdb.DB
	retention time.Duration
}

// Open opens or creates the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badgerdb.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	// Entries are a few hundred bytes of JSON
	opts = opts.WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	logger.Debug("Journal opened at %q (retention=%s)", cfg.Path, cfg.Retention)
	return &Journal{db: db, retention: cfg.Retention}, nil
}

func entryKey(e journal.Entry) []byte {
	key := make([]byte, 0, len(prefixEntry)+8+len(e.ID))
	key = append(key, prefixEntry...)
	key = binary.BigEndian.AppendUint64(key, uint64(e.Started.UnixNano()))
	return append(key, e.ID...)
}

func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.db.IsClosed() {
		return journal.ErrClosed
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	return j.db.Update(func(txn *badgerdb.Txn) error {
		be := badgerdb.NewEntry(entryKey(e), val)
		if j.retention > 0 {
			be = be.WithTTL(j.retention)
		}
		return txn.SetEntry(be)
	})
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j.db.IsClosed() {
		return nil, journal.ErrClosed
	}

	var out []journal.Entry
	err := j.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixEntry)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key <= seek
		seek := append([]byte(prefixEntry), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			if len(out)%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var e journal.Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to decode journal entry: %w", err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Journal) Close() error {
	if j.db.IsClosed() {
		return journal.ErrClosed
	}
	return j.db.Close()
}
