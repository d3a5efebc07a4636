// Package admission decides whether an upload may start based on the free
// space of the filesystem that will receive it.
//
// The check is advisory. Space is not reserved, so concurrent writers can
// consume it between the check and the write.
package admission

import (
	"errors"
	"fmt"
)

// ErrInsufficientSpace is returned when the declared size exceeds the
// space available to unprivileged users.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// FreeSpaceFunc reports the bytes available on the filesystem holding path.
type FreeSpaceFunc func(path string) (uint64, error)

// Checker compares declared transfer sizes against free space.
type Checker struct {
	freeSpace FreeSpaceFunc
}

// New returns a Checker backed by the operating system's filesystem
// statistics.
func New() *Checker {
	return &Checker{freeSpace: FreeSpace}
}

// NewWithFunc returns a Checker that queries free space through fn.
func NewWithFunc(fn FreeSpaceFunc) *Checker {
	return &Checker{freeSpace: fn}
}

// Check returns nil when directory's filesystem has at least declaredSize
// bytes available. A failed statistics query is reported as an error
// wrapping the cause; callers treat it the same as a lack of space.
func (c *Checker) Check(directory string, declaredSize int64) error {
	free, err := c.freeSpace(directory)
	if err != nil {
		return fmt.Errorf("query free space of %s: %w", directory, err)
	}
	if declaredSize < 0 || uint64(declaredSize) > free {
		return fmt.Errorf("%w: need %d bytes, %d available", ErrInsufficientSpace, declaredSize, free)
	}
	return nil
}

// HasCapacity is the boolean form of Check.
func (c *Checker) HasCapacity(directory string, declaredSize int64) bool {
	return c.Check(directory, declaredSize) == nil
}
