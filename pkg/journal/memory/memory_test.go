package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/marmos91/ftserver/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, j *Journal, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, j.Record(context.Background(), journal.NewEntry("c", "WRITE", fmt.Sprintf("f%d", i))))
	}
}

func paths(entries []journal.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestRecent_NewestFirst(t *testing.T) {
	j := New(8)
	record(t, j, 3)

	got, err := j.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f1", "f0"}, paths(got))

	got, err = j.Recent(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f1"}, paths(got))
}

func TestRecord_OverwritesOldest(t *testing.T) {
	j := New(3)
	record(t, j, 5)

	got, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"f4", "f3", "f2"}, paths(got))
}

func TestClose(t *testing.T) {
	j := New(0)
	require.NoError(t, j.Close())

	assert.ErrorIs(t, j.Record(context.Background(), journal.Entry{}), journal.ErrClosed)
	_, err := j.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, journal.ErrClosed)
	assert.ErrorIs(t, j.Close(), journal.ErrClosed)
}

func TestRecord_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New(1).Record(ctx, journal.Entry{}), context.Canceled)
}
