package locking

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_SameInstanceUnderContention(t *testing.T) {
	reg := NewRegistry()

	const callers = 64
	results := make([]*FileLock, callers)

	var start sync.WaitGroup
	start.Add(1)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			results[i] = reg.Lookup("/srv/ft/new-file.bin")
		}(i)
	}
	start.Done()
	wg.Wait()

	for i := 1; i < callers; i++ {
		require.Same(t, results[0], results[i], "caller %d got a different FileLock", i)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestLookup_DistinctPathsDistinctLocks(t *testing.T) {
	reg := NewRegistry()

	a := reg.Lookup("/srv/ft/a")
	b := reg.Lookup("/srv/ft/b")

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, reg.Len())
}

func TestLookup_NormalizesKeys(t *testing.T) {
	reg := NewRegistry()

	a := reg.Lookup("/srv/ft//a.txt")
	b := reg.Lookup("/srv/ft/./a.txt")
	c := reg.Lookup("/srv/ft/sub/../a.txt")

	assert.Same(t, a, b)
	assert.Same(t, a, c)
	assert.Equal(t, "/srv/ft/a.txt", a.Path())
}

func TestAcquire_MutualExclusion(t *testing.T) {
	reg := NewRegistry()

	var inside atomic.Int32
	var maxInside atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fl := reg.Acquire("/srv/ft/shared")
			defer fl.Unlock()

			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestRelease_UnblocksWaiter(t *testing.T) {
	reg := NewRegistry()
	reg.Acquire("/srv/ft/x")

	acquired := make(chan struct{})
	go func() {
		fl := reg.Acquire("/srv/ft/x")
		close(acquired)
		fl.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	reg.Release("/srv/ft/x")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestAcquire_DifferentPathsDoNotBlock(t *testing.T) {
	reg := NewRegistry()
	held := reg.Acquire("/srv/ft/one")
	defer held.Unlock()

	done := make(chan struct{})
	go func() {
		reg.Acquire("/srv/ft/two").Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different path blocked")
	}
}

// The listing critical section shares the registry mutex, so it stalls
// lock resolution for every path until it finishes.
func TestWithRegistryLock_StallsLockResolution(t *testing.T) {
	reg := NewRegistry()

	inList := make(chan struct{})
	finishList := make(chan struct{})
	listDone := make(chan error, 1)
	go func() {
		listDone <- reg.WithRegistryLock(func() error {
			close(inList)
			<-finishList
			return nil
		})
	}()
	<-inList

	resolved := make(chan struct{})
	go func() {
		reg.Acquire("/srv/ft/unrelated").Unlock()
		close(resolved)
	}()

	select {
	case <-resolved:
		t.Fatal("Acquire proceeded while the registry lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(finishList)
	require.NoError(t, <-listDone)

	select {
	case <-resolved:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not proceed after listing finished")
	}
}

// A held FileLock does not prevent listing: the two locks are independent.
func TestWithRegistryLock_IgnoresFileLocks(t *testing.T) {
	reg := NewRegistry()
	held := reg.Acquire("/srv/ft/busy")
	defer held.Unlock()

	ran := false
	require.NoError(t, reg.WithRegistryLock(func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
