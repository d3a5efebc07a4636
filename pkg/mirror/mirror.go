// Package mirror copies completed uploads to an S3 bucket in the background.
//
// Mirroring is best effort: jobs are queued without blocking the connection
// that produced them and are dropped when the queue is full. Each upload
// holds the file's lock while reading, so a mirrored object never mixes two
// WRITEs of the same path.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/pkg/locking"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("mirror closed")

// ErrQueueFull is returned by Enqueue when the job queue has no room.
var ErrQueueFull = errors.New("mirror queue full")

// PutObjectAPI is the subset of the S3 client used by the mirror.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures a Mirror.
type Config struct {
	// Bucket receives the objects.
	Bucket string

	// KeyPrefix is prepended to every object key.
	KeyPrefix string

	// Workers is the number of concurrent uploads. Default: 2
	Workers int

	// QueueSize bounds pending jobs. Default: 256
	QueueSize int
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

type job struct {
	local string
	key   string
}

// Stats counts mirror outcomes.
type Stats struct {
	Uploaded uint64
	Failed   uint64
	Dropped  uint64
}

// Mirror uploads files to S3 from a pool of workers.
type Mirror struct {
	client   PutObjectAPI
	config   Config
	registry *locking.Registry

	jobs      chan job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	uploaded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// New returns a stopped mirror. Locks are taken from registry so uploads
// serialize with WRITE and READ on the same path.
func New(client PutObjectAPI, registry *locking.Registry, config Config) (*Mirror, error) {
	if client == nil {
		return nil, fmt.Errorf("mirror: client is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("mirror: bucket is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("mirror: lock registry is required")
	}
	config.applyDefaults()

	return &Mirror{
		client:   client,
		config:   config,
		registry: registry,
		jobs:     make(chan job, config.QueueSize),
	}, nil
}

// Start launches the workers. They run until Close drains the queue; ctx
// bounds each individual upload.
func (m *Mirror) Start(ctx context.Context) {
	for i := 0; i < m.config.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	logger.Info("S3 mirror started: bucket=%s, prefix=%q, workers=%d",
		m.config.Bucket, m.config.KeyPrefix, m.config.Workers)
}

// ObjectKey maps a peer-supplied path to an object key. Dot segments are
// resolved so a key never escapes KeyPrefix.
func (m *Mirror) ObjectKey(peerPath string) string {
	clean := strings.TrimPrefix(path.Clean("/"+peerPath), "/")
	return m.config.KeyPrefix + clean
}

// Enqueue schedules local to be uploaded under the key derived from
// peerPath. It never blocks.
func (m *Mirror) Enqueue(local, peerPath string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	select {
	case m.jobs <- job{local: local, key: m.ObjectKey(peerPath)}:
		return nil
	default:
		m.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued uploads to finish.
func (m *Mirror) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.jobs)
		m.mu.Unlock()
	})
	m.wg.Wait()
	return nil
}

// Stats returns a snapshot of the counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
		Dropped:  m.dropped.Load(),
	}
}

func (m *Mirror) worker(ctx context.Context) {
	defer m.wg.Done()

	for j := range m.jobs {
		if err := m.upload(ctx, j); err != nil {
			m.failed.Add(1)
			logger.Warn("Mirror upload failed: local=%s key=%s: %v", j.local, j.key, err)
			continue
		}
		m.uploaded.Add(1)
		logger.Debug("Mirrored %s to s3://%s/%s", j.local, m.config.Bucket, j.key)
	}
}

func (m *Mirror) upload(ctx context.Context, j job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fl := m.registry.Acquire(j.local)
	defer fl.Unlock()

	f, err := os.Open(j.local)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.config.Bucket),
		Key:           aws.String(j.key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
