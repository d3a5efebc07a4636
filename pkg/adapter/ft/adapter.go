// Package ft serves the file transfer protocol: one command per TCP
// connection, WRITE uploads into the root directory, READ downloads from it
// and LIST enumerates one of its directories.
package ft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/internal/protocol"
	"github.com/marmos91/ftserver/internal/ratelimiter"
	"github.com/marmos91/ftserver/pkg/adapter"
	"github.com/marmos91/ftserver/pkg/admission"
	"github.com/marmos91/ftserver/pkg/journal"
	"github.com/marmos91/ftserver/pkg/locking"
	"github.com/marmos91/ftserver/pkg/metrics"
	"github.com/marmos91/ftserver/pkg/transfer"
)

var _ adapter.Adapter = (*Adapter)(nil)

// Mirror receives completed uploads. Implemented by *mirror.Mirror.
type Mirror interface {
	Enqueue(local, peerPath string) error
}

// Adapter accepts connections and runs one handler goroutine per connection.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Wait for active connections to finish (up to ShutdownTimeout)
//  4. Force-close any remaining connections after timeout
//
// Handlers have no cancellation point of their own: a transfer in progress
// only stops when its connection is closed.
type Adapter struct {
	config Config

	listener   net.Listener
	listenerMu sync.RWMutex

	registry  *locking.Registry
	admission *admission.Checker
	streamer  *transfer.Streamer
	limiter   *ratelimiter.RateLimiter
	journal   journal.Journal
	mirror    Mirror
	metrics   metrics.FTMetrics

	// activeConns tracks handler goroutines for graceful shutdown
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore bounds concurrent connections when MaxConnections > 0
	connSemaphore chan struct{}

	// activeConnections maps connection id to net.Conn for forced closure
	activeConnections sync.Map
}

// Config holds the adapter settings.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - MaxConnections: 0 (unlimited)
//   - ConnectionsPerSecond: 0 (unlimited)
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 5m
//   - ChunkSize: 4096
//   - MaxCommandLine: 4096
type Config struct {
	// Address to bind. Empty binds all interfaces.
	Address string

	// Port to listen on. Zero picks the default, use a listener with
	// ServeListener for an ephemeral port.
	Port int

	// RootDirectory is prefixed to every peer path. It must exist.
	RootDirectory string

	// MaxConnections caps concurrent connections. Zero means unbounded,
	// one goroutine per accepted connection.
	MaxConnections int

	// ConnectionsPerSecond throttles accepts. Zero disables throttling.
	ConnectionsPerSecond uint

	// ShutdownTimeout bounds the wait for active connections on shutdown.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the period of the connection count log line.
	// Negative disables it.
	MetricsLogInterval time.Duration

	// ChunkSize is the transfer buffer size.
	ChunkSize int

	// MaxCommandLine bounds the first line of a connection.
	MaxCommandLine int
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = transfer.DefaultChunkSize
	}
	if c.MaxCommandLine == 0 {
		c.MaxCommandLine = protocol.MaxLineLength
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.RootDirectory == "" {
		return fmt.Errorf("root directory is required")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("invalid ChunkSize %d: must be > 0", c.ChunkSize)
	}
	// bufio needs room for at least "LIST x\n"
	if c.MaxCommandLine < 16 {
		return fmt.Errorf("invalid MaxCommandLine %d: must be >= 16", c.MaxCommandLine)
	}
	return nil
}

// New creates an adapter. A nil ftMetrics disables metrics collection.
// It panics if config is invalid after defaults are applied.
func New(config Config, ftMetrics metrics.FTMetrics) *Adapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid FT config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("FT connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("FT connection limit: unlimited")
	}

	if ftMetrics == nil {
		ftMetrics = metrics.NewNoopFTMetrics()
	}

	return &Adapter{
		config:        config,
		registry:      locking.NewRegistry(),
		admission:     admission.New(),
		streamer:      transfer.NewStreamer(config.ChunkSize),
		limiter:       ratelimiter.New(config.ConnectionsPerSecond, 0),
		journal:       journal.Nop{},
		metrics:       ftMetrics,
		shutdown:      make(chan struct{}),
		connSemaphore: connSemaphore,
	}
}

// Registry returns the lock registry shared by all handlers.
func (s *Adapter) Registry() *locking.Registry {
	return s.registry
}

// SetAdmission replaces the free-space checker. Must be called before Serve.
func (s *Adapter) SetAdmission(c *admission.Checker) {
	s.admission = c
}

// SetJournal sets where completed commands are recorded. Must be called
// before Serve.
func (s *Adapter) SetJournal(j journal.Journal) {
	if j == nil {
		j = journal.Nop{}
	}
	s.journal = j
}

// SetMirror sets the destination for completed uploads. Must be called
// before Serve.
func (s *Adapter) SetMirror(m Mirror) {
	s.mirror = m
}

// Protocol implements adapter.Adapter.
func (s *Adapter) Protocol() string {
	return "FT"
}

// Port returns the bound port once listening, the configured port before.
func (s *Adapter) Port() int {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Serve listens on Address:Port and accepts connections until ctx is
// cancelled or Stop is called.
func (s *Adapter) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create FT listener on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener, which the adapter takes
// ownership of.
func (s *Adapter) ServeListener(ctx context.Context, listener net.Listener) error {
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	logger.Info("FT server listening on %s (root=%s)", listener.Addr(), s.config.RootDirectory)
	logger.Debug("FT config: max_connections=%d connections_per_second=%d chunk_size=%d",
		s.config.MaxConnections, s.config.ConnectionsPerSecond, s.config.ChunkSize)

	// Stop also closes shutdown, so this goroutine exits either way
	acceptCtx, cancelAccept := context.WithCancel(ctx)
	defer cancelAccept()
	go func() {
		select {
		case <-acceptCtx.Done():
			if ctx.Err() != nil {
				logger.Info("FT shutdown signal received: %v", ctx.Err())
			}
			s.initiateShutdown()
		case <-s.shutdown:
			cancelAccept()
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(acceptCtx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		if !s.limiter.Allow() {
			s.metrics.RecordConnectionThrottled()
			if err := s.limiter.Wait(acceptCtx); err != nil {
				s.releaseSlot()
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			s.releaseSlot()

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				if errors.Is(err, net.ErrClosed) {
					return s.gracefulShutdown()
				}
				logger.Debug("Error accepting FT connection: %v", err)
				continue
			}
		}

		conn := newConnection(s, tcpConn)

		s.activeConns.Add(1)
		s.connCount.Add(1)
		s.activeConnections.Store(conn.id, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("FT connection accepted from %s conn=%s (active: %d)",
			tcpConn.RemoteAddr(), conn.id, currentConns)

		go func() {
			defer func() {
				s.activeConnections.Delete(conn.id)
				s.activeConns.Done()
				s.connCount.Add(-1)
				s.releaseSlot()

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("FT connection closed conn=%s (active: %d)", conn.id, currentConns)
			}()

			conn.Serve()
		}()
	}
}

func (s *Adapter) releaseSlot() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
}

// initiateShutdown closes the shutdown channel and the listener. Idempotent.
func (s *Adapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("FT shutdown initiated")
		close(s.shutdown)

		s.listenerMu.RLock()
		listener := s.listener
		s.listenerMu.RUnlock()

		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("Error closing FT listener: %v", err)
			}
		}
	})
}

// gracefulShutdown waits up to ShutdownTimeout for active connections, then
// force-closes whatever is left.
func (s *Adapter) gracefulShutdown() error {
	s.initiateShutdown()

	activeCount := s.connCount.Load()
	logger.Info("FT graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	select {
	case <-s.waitConns():
		logger.Info("FT graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("FT shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()
		return fmt.Errorf("FT shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Adapter) waitConns() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

// forceCloseConnections closes every tracked connection. Blocked handlers
// then fail their pending I/O and release their locks.
func (s *Adapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing conn=%s: %v", id, err)
		} else {
			closedCount++
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates shutdown and waits for active connections until ctx is
// done. It does not force-close; Serve does that after ShutdownTimeout.
func (s *Adapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	select {
	case <-s.waitConns():
		return nil
	case <-ctx.Done():
		logger.Warn("FT stop: %d connection(s) still active: %v", s.connCount.Load(), ctx.Err())
		return ctx.Err()
	}
}

func (s *Adapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			locks := s.registry.Len()
			s.metrics.SetLockRegistrySize(locks)
			logger.Info("FT metrics: active_connections=%d file_locks=%d", s.connCount.Load(), locks)
		}
	}
}

// ActiveConnections returns the number of connections being served.
func (s *Adapter) ActiveConnections() int32 {
	return s.connCount.Load()
}
