// Package transfer moves file bytes between a connection and a file in
// fixed-size chunks.
//
// Two directions exist:
//   - Receive (upload): connection -> file, until the peer stops sending.
//   - Send (download): file -> connection, flushing each chunk completely
//     before the next one is read.
//
// Both tolerate short transport writes and report byte counts so callers
// can verify what was read against what was delivered.
package transfer

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize matches the receive buffer of the command line.
const DefaultChunkSize = 4096

// maxEmptyWrites bounds consecutive writes that accept zero bytes without
// reporting an error.
const maxEmptyWrites = 100

var (
	// ErrShortWrite is returned by Receive when the file accepts fewer
	// bytes than were received from the connection.
	ErrShortWrite = errors.New("short write to file")

	// ErrTransport wraps failures of the connection side.
	ErrTransport = errors.New("transport error")
)

// Result aggregates the byte counts of one transfer.
type Result struct {
	// BytesIn is the number of bytes read from the source.
	BytesIn int64

	// BytesOut is the number of bytes accepted by the destination.
	BytesOut int64
}

// Complete reports whether every byte read was delivered.
func (r Result) Complete() bool {
	return r.BytesIn == r.BytesOut
}

// Streamer runs transfers with a fixed chunk size.
//
// Thread safety:
// A Streamer is safe for concurrent use; each call works on its own chunk.
type Streamer struct {
	chunkSize int
	pool      *chunkPool
}

// NewStreamer returns a Streamer using chunkSize bytes per chunk.
// A non-positive size selects DefaultChunkSize.
func NewStreamer(chunkSize int) *Streamer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Streamer{
		chunkSize: chunkSize,
		pool:      newChunkPool(chunkSize),
	}
}

// ChunkSize returns the configured chunk size.
func (s *Streamer) ChunkSize() int {
	return s.chunkSize
}

// Receive copies conn into file until conn reports end-of-stream.
//
// Every received byte is written to file in a single Write; a Write that
// accepts fewer bytes aborts with ErrShortWrite. Read failures on conn are
// wrapped in ErrTransport. No comparison against a declared size is made.
func (s *Streamer) Receive(file io.Writer, conn io.Reader) (Result, error) {
	buf := s.pool.get()
	defer s.pool.put(buf)

	var res Result
	for {
		n, rerr := conn.Read(buf)
		if n > 0 {
			res.BytesIn += int64(n)

			written, werr := file.Write(buf[:n])
			res.BytesOut += int64(written)
			if werr != nil {
				return res, fmt.Errorf("write file: %w", werr)
			}
			if written < n {
				return res, fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, written, n)
			}
		}

		if rerr == io.EOF {
			return res, nil
		}
		if rerr != nil {
			return res, fmt.Errorf("%w: receive: %w", ErrTransport, rerr)
		}
	}
}

// Send copies file to conn chunk by chunk.
//
// When conn accepts only part of a chunk, the remainder is retried from the
// current offset until the chunk is flushed; the next chunk is read only
// afterwards. A send error aborts the transfer wrapped in ErrTransport.
func (s *Streamer) Send(conn io.Writer, file io.Reader) (Result, error) {
	buf := s.pool.get()
	defer s.pool.put(buf)

	var res Result
	for {
		n, rerr := file.Read(buf)
		if n > 0 {
			res.BytesIn += int64(n)

			sent, err := sendAll(conn, buf[:n])
			res.BytesOut += int64(sent)
			if err != nil {
				return res, fmt.Errorf("%w: send: %w", ErrTransport, err)
			}
		}

		if rerr == io.EOF {
			return res, nil
		}
		if rerr != nil {
			return res, fmt.Errorf("read file: %w", rerr)
		}
	}
}

// sendAll writes chunk to w, advancing an offset past whatever each Write
// accepted until nothing remains.
func sendAll(w io.Writer, chunk []byte) (int, error) {
	offset := 0
	empty := 0
	for offset < len(chunk) {
		n, err := w.Write(chunk[offset:])
		if n < 0 || n > len(chunk)-offset {
			return offset, fmt.Errorf("invalid write count %d", n)
		}
		offset += n
		if err != nil {
			return offset, err
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyWrites {
				return offset, io.ErrNoProgress
			}
			continue
		}
		empty = 0
	}
	return offset, nil
}
