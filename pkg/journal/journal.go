// Package journal records one entry per served command so operators can see
// what a server has been doing after the fact.
//
// The journal is write-mostly: the connection handler appends an Entry when
// a command finishes and nothing on the transfer path ever reads it back.
// Failures to record are logged by the caller and never fail the command.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal closed")

// Entry describes one completed command.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// ConnID is the connection that issued the command.
	ConnID string `json:"conn_id"`

	// Verb is WRITE, READ or LIST.
	Verb string `json:"verb"`

	// Path is the path as sent by the peer, before joining with the root.
	Path string `json:"path"`

	// Bytes is the payload moved: received for WRITE, sent for READ.
	Bytes int64 `json:"bytes"`

	// Outcome classifies the result (ok, capacity, filesystem, transport, protocol).
	Outcome string `json:"outcome"`

	// Error holds the failure text, empty on success.
	Error string `json:"error,omitempty"`

	// Started is when the command line was parsed.
	Started time.Time `json:"started"`

	// Duration is the total handling time.
	Duration time.Duration `json:"duration"`
}

// NewEntry returns an Entry with a fresh ID and Started set to now.
func NewEntry(connID, verb, path string) Entry {
	return Entry{
		ID:      uuid.NewString(),
		ConnID:  connID,
		Verb:    verb,
		Path:    path,
		Started: time.Now(),
	}
}

// Journal stores command entries.
//
// Implementations must be safe for concurrent use.
type Journal interface {
	// Record appends e.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// Nop is a Journal that drops everything.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error          { return nil }
func (Nop) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (Nop) Close() error                                 { return nil }
