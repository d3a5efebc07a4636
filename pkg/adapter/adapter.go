// Package adapter defines the lifecycle shared by protocol front ends.
package adapter

import "context"

// Adapter is a network front end serving one protocol.
//
// Serve blocks until ctx is cancelled or Stop is called, then returns after
// in-flight connections have finished or been force-closed.
type Adapter interface {
	// Serve listens and accepts connections until shutdown.
	Serve(ctx context.Context) error

	// Stop initiates shutdown and waits for active connections, bounded by ctx.
	Stop(ctx context.Context) error

	// Protocol returns a short protocol name for logs.
	Protocol() string

	// Port returns the bound TCP port, or the configured one before Serve.
	Port() int
}
