// Package locking serializes access to individual files of the served tree.
//
// Every file path maps to exactly one FileLock for the whole lifetime of the
// process. Entries are created on first use and never evicted, so the
// registry grows with the number of distinct paths ever touched. This is
// accepted: entries are a few dozen bytes and evicting them safely would
// require reference counting on every acquire/release.
//
// The registry's own mutex doubles as the directory-listing lock: while
// WithRegistryLock runs, no FileLock can be looked up or created, which
// stalls every WRITE and READ that has not yet resolved its FileLock.
package locking

import (
	"path/filepath"
	"sync"
)

// FileLock is an exclusive lock bound to one normalized file path.
type FileLock struct {
	path string
	mu   sync.Mutex
}

// Path returns the normalized path the lock guards.
func (l *FileLock) Path() string {
	return l.path
}

// Lock blocks until the caller holds the lock exclusively.
func (l *FileLock) Lock() {
	l.mu.Lock()
}

// Unlock releases the lock. Unlocking a FileLock that is not held is a
// programming error and aborts the process.
func (l *FileLock) Unlock() {
	l.mu.Unlock()
}

// Registry maps normalized paths to their FileLock.
//
// Thread safety:
// All methods are safe for concurrent use. Lookup-or-create runs entirely
// under the registry mutex, so concurrent first requests for the same path
// always observe a single FileLock.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*FileLock
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		locks: make(map[string]*FileLock),
	}
}

// Normalize converts path into the key under which its FileLock is stored.
// Relative paths are made absolute against the working directory and
// redundant separators and dot segments are removed, so "root//a" and
// "root/./a" share a lock. The filesystem path used for I/O is not affected.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Lookup returns the FileLock for path, creating it if absent. It does not
// lock the FileLock.
func (r *Registry) Lookup(path string) *FileLock {
	key := Normalize(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	fl, ok := r.locks[key]
	if !ok {
		fl = &FileLock{path: key}
		r.locks[key] = fl
	}
	return fl
}

// Acquire resolves the FileLock for path and blocks until it is held.
// The registry mutex is released before waiting on the FileLock.
//
// Callers should release with a deferred Unlock on the returned lock:
//
//	fl := reg.Acquire(path)
//	defer fl.Unlock()
func (r *Registry) Acquire(path string) *FileLock {
	fl := r.Lookup(path)
	fl.Lock()
	return fl
}

// Release looks the FileLock for path back up and unlocks it.
func (r *Registry) Release(path string) {
	r.Lookup(path).Unlock()
}

// WithRegistryLock runs fn while holding the registry mutex. Lookup,
// Acquire and Release of any path block until fn returns.
func (r *Registry) WithRegistryLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}

// Len returns the number of FileLocks ever created.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
