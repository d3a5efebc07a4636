// Package memory provides an in-process Journal bounded to a fixed number
// of entries. The oldest entry is overwritten once the ring is full.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/ftserver/pkg/journal"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1024

// Journal is a ring buffer of entries.
type Journal struct {
	mu      sync.Mutex
	entries []journal.Entry
	next    int
	full    bool
	closed  bool
}

// New returns an empty journal holding at most capacity entries.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{entries: make([]journal.Entry, capacity)}
}

func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return journal.ErrClosed
	}

	j.entries[j.next] = e
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, journal.ErrClosed
	}

	n := j.next
	if j.full {
		n = len(j.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]journal.Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.entries)) % len(j.entries)
		out = append(out, j.entries[idx])
	}
	return out, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return journal.ErrClosed
	}
	j.closed = true
	j.entries = nil
	return nil
}
