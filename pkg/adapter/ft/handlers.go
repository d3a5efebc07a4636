package ft

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/internal/protocol"
	"github.com/marmos91/ftserver/pkg/locking"
	"github.com/marmos91/ftserver/pkg/metrics"
	"github.com/marmos91/ftserver/pkg/transfer"
)

var (
	errPathTooLong    = errors.New("path too long")
	errClientNoSpace  = errors.New("file larger than client free space")
	errListingAborted = errors.New("listing aborted")
)

// acquire takes the FileLock for path and records how long it waited.
func (c *connection) acquire(verb protocol.Verb, path string) *locking.FileLock {
	start := time.Now()
	fl := c.server.registry.Acquire(path)
	c.server.metrics.RecordLockWait(string(verb), time.Since(start))
	return fl
}

// handleWrite serves WRITE <path> <size>.
//
// The admission check runs before the FileLock is taken, so a rejected
// upload never creates or truncates the destination. After the ack the peer
// streams the payload and half-closes; the file is closed before the lock
// is released.
func (c *connection) handleWrite(cmd *protocol.Command) result {
	root := c.server.config.RootDirectory

	if protocol.PathTooLong(root, cmd.Path) {
		_ = c.reply(protocol.ErrorLine(protocol.ReasonPathTooLong))
		return failed(metrics.OutcomeProtocol, 0, errPathTooLong)
	}

	fullPath := protocol.FilePath(root, cmd.Path)

	if err := c.server.admission.Check(root, cmd.Size); err != nil {
		_ = c.reply(protocol.ErrorLine(protocol.ReasonNoSpace))
		return failed(metrics.OutcomeCapacity, 0, err)
	}

	fl := c.acquire(cmd.Verb, fullPath)
	defer fl.Unlock()

	file, err := os.Create(fullPath)
	if err != nil {
		_ = c.reply(protocol.ErrorLine(protocol.ReasonNoSuchDirectory))
		return failed(metrics.OutcomeFilesystem, 0, err)
	}

	if err := c.reply(protocol.WriteAck); err != nil {
		_ = file.Close()
		return failed(metrics.OutcomeTransport, 0, err)
	}

	res, rerr := c.server.streamer.Receive(file, c.reader)
	cerr := file.Close()
	c.server.metrics.RecordBytesTransferred(metrics.DirectionUpload, res.BytesOut)

	if rerr != nil {
		if errors.Is(rerr, transfer.ErrTransport) {
			return failed(metrics.OutcomeTransport, res.BytesOut, rerr)
		}
		return failed(metrics.OutcomeFilesystem, res.BytesOut, rerr)
	}
	if cerr != nil {
		return failed(metrics.OutcomeFilesystem, res.BytesOut, fmt.Errorf("close file: %w", cerr))
	}

	if c.server.mirror != nil {
		if err := c.server.mirror.Enqueue(fullPath, cmd.Path); err != nil {
			logger.Warn("FT conn=%s: mirror %s skipped: %v", c.id, cmd.Path, err)
		}
	}

	return ok(res.BytesOut)
}

// handleRead serves READ <path> <clientFreeSpace>.
//
// The FileLock is released on every return path, including the one where
// the file does not fit on the client.
func (c *connection) handleRead(cmd *protocol.Command) result {
	fullPath := protocol.FilePath(c.server.config.RootDirectory, cmd.Path)

	fl := c.acquire(cmd.Verb, fullPath)
	defer fl.Unlock()

	file, err := os.Open(fullPath)
	if err != nil {
		_ = c.reply(protocol.ErrorLine(protocol.ReasonFileOpenFailed))
		return failed(metrics.OutcomeFilesystem, 0, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return failed(metrics.OutcomeFilesystem, 0, fmt.Errorf("stat: %w", err))
	}

	if info.Size() > cmd.Size {
		_ = c.reply(protocol.ErrorLine(protocol.ReasonNoSpace))
		return failed(metrics.OutcomeCapacity, 0,
			fmt.Errorf("%w: %d > %d", errClientNoSpace, info.Size(), cmd.Size))
	}

	res, err := c.server.streamer.Send(c.conn, file)
	c.server.metrics.RecordBytesTransferred(metrics.DirectionDownload, res.BytesOut)
	if err != nil {
		if errors.Is(err, transfer.ErrTransport) {
			return failed(metrics.OutcomeTransport, res.BytesOut, err)
		}
		return failed(metrics.OutcomeFilesystem, res.BytesOut, err)
	}

	return ok(res.BytesOut)
}

// handleList serves LIST <path>.
//
// The listing runs entirely under the registry lock, so no WRITE or READ can
// resolve its FileLock until it finishes. Entries are sent in directory
// order, "." and ".." first.
func (c *connection) handleList(cmd *protocol.Command) result {
	dirPath := protocol.ListPath(c.server.config.RootDirectory, cmd.Path)

	var res result
	start := time.Now()
	_ = c.server.registry.WithRegistryLock(func() error {
		c.server.metrics.RecordLockWait(string(cmd.Verb), time.Since(start))
		res = c.list(dirPath)
		return res.err
	})

	c.server.metrics.RecordBytesTransferred(metrics.DirectionListing, res.bytes)
	return res
}

func (c *connection) list(dirPath string) result {
	dir, err := os.Open(dirPath)
	if err == nil {
		var info os.FileInfo
		if info, err = dir.Stat(); err == nil && !info.IsDir() {
			err = fmt.Errorf("%s: not a directory", dirPath)
		}
		if err != nil {
			_ = dir.Close()
		}
	}
	if err != nil {
		_ = c.reply(protocol.ErrorLine(protocol.ReasonDirOpenFailed))
		return failed(metrics.OutcomeFilesystem, 0, err)
	}
	defer dir.Close()

	var sent int64
	send := func(name string) error {
		n, err := c.conn.Write([]byte(protocol.ListLine(name)))
		sent += int64(n)
		return err
	}

	for _, name := range []string{".", ".."} {
		if err := send(name); err != nil {
			return failed(metrics.OutcomeTransport, sent, fmt.Errorf("%w: %w", errListingAborted, err))
		}
	}

	for {
		names, rerr := dir.Readdirnames(64)
		for _, name := range names {
			if err := send(name); err != nil {
				return failed(metrics.OutcomeTransport, sent, fmt.Errorf("%w: %w", errListingAborted, err))
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return ok(sent)
			}
			return failed(metrics.OutcomeFilesystem, sent, fmt.Errorf("read directory: %w", rerr))
		}
	}
}
