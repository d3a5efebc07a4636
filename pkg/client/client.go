// Package client is the peer side of the file transfer protocol.
//
// Each call opens its own connection, sends one command and closes the
// connection when the exchange is over.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/ftserver/internal/protocol"
	"github.com/marmos91/ftserver/pkg/admission"
	"github.com/marmos91/ftserver/pkg/transfer"
)

// RemoteError is a failure reported by the server as an ERROR line.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "server: " + e.Reason
}

// Config configures a Client.
type Config struct {
	// Address is the server host.
	Address string

	// Port is the server port.
	Port int

	// DialTimeout bounds connection setup. Default: 10s
	DialTimeout time.Duration

	// ChunkSize is the transfer buffer size. Default: 4096
	ChunkSize int

	// FreeSpace reports local free space sent with READ. Defaults to the
	// filesystem statistics of the download's directory.
	FreeSpace admission.FreeSpaceFunc
}

// Client talks to one server.
type Client struct {
	addr      string
	dialer    net.Dialer
	streamer  *transfer.Streamer
	freeSpace admission.FreeSpaceFunc
}

// New returns a client for config.
func New(config Config) (*Client, error) {
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	if config.FreeSpace == nil {
		config.FreeSpace = admission.FreeSpace
	}

	return &Client{
		addr:      net.JoinHostPort(config.Address, strconv.Itoa(config.Port)),
		dialer:    net.Dialer{Timeout: config.DialTimeout},
		streamer:  transfer.NewStreamer(config.ChunkSize),
		freeSpace: config.FreeSpace,
	}, nil
}

// dial connects and arranges for the connection to be closed if ctx ends
// before the returned stop function is called.
func (c *Client) dial(ctx context.Context) (*net.TCPConn, func(), error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", c.addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	return conn.(*net.TCPConn), func() { stop(); _ = conn.Close() }, nil
}

func (c *Client) send(conn net.Conn, cmd protocol.Command) error {
	if _, err := io.WriteString(conn, cmd.String()); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

func remoteError(line string) error {
	reason := strings.TrimSpace(strings.TrimPrefix(line, protocol.ErrorPrefix))
	return &RemoteError{Reason: reason}
}

// Write uploads localPath as remotePath and returns the bytes sent.
//
// The payload is streamed after the server acknowledges the command and
// the send side is then half-closed to mark its end. Write returns once the
// server has closed the connection, which it does after closing the file.
func (c *Client) Write(ctx context.Context, localPath, remotePath string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}

	conn, done, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	if err := c.send(conn, protocol.Command{Verb: protocol.VerbWrite, Path: remotePath, Size: info.Size()}); err != nil {
		return 0, err
	}

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("read reply: %w", err)
	}
	if protocol.IsError(line) {
		return 0, remoteError(line)
	}

	res, err := c.streamer.Send(conn, file)
	if err != nil {
		return res.BytesOut, err
	}
	if err := conn.CloseWrite(); err != nil {
		return res.BytesOut, fmt.Errorf("close send side: %w", err)
	}

	// Wait for the server to finish writing the file
	if _, err := io.Copy(io.Discard, r); err != nil {
		return res.BytesOut, fmt.Errorf("await server close: %w", err)
	}
	return res.BytesOut, ctx.Err()
}

// Read downloads remotePath into localPath and returns the bytes received.
//
// The server either streams the file or sends a single ERROR line. The two
// are told apart by the leading bytes, so a file whose content starts with
// the error prefix is reported as a RemoteError. localPath is only created
// once data is known to follow.
func (c *Client) Read(ctx context.Context, remotePath, localPath string) (int64, error) {
	free, err := c.freeSpace(filepath.Dir(localPath))
	if err != nil {
		return 0, fmt.Errorf("query local free space: %w", err)
	}

	conn, done, err := c.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	if err := c.send(conn, protocol.Command{Verb: protocol.VerbRead, Path: remotePath, Size: clampSize(free)}); err != nil {
		return 0, err
	}

	r := bufio.NewReaderSize(conn, protocol.MaxLineLength)
	head, err := r.Peek(len(protocol.ErrorPrefix))
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read reply: %w", err)
	}
	if bytes.Equal(head, []byte(protocol.ErrorPrefix)) {
		line, _ := r.ReadString('\n')
		return 0, remoteError(line)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return 0, err
	}

	res, rerr := c.streamer.Receive(file, r)
	if cerr := file.Close(); rerr == nil {
		rerr = cerr
	}
	if rerr != nil {
		return res.BytesOut, rerr
	}
	return res.BytesOut, ctx.Err()
}

// List returns the entry names of remotePath, which is appended to the
// server root without a separator ("/" lists the root itself).
func (c *Client) List(ctx context.Context, remotePath string) ([]string, error) {
	conn, done, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	if err := c.send(conn, protocol.Command{Verb: protocol.VerbList, Path: remotePath}); err != nil {
		return nil, err
	}

	var names []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if len(names) == 0 && protocol.IsError(line) {
			return nil, remoteError(line)
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return names, fmt.Errorf("read listing: %w", err)
	}
	return names, ctx.Err()
}

func clampSize(n uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if n > maxInt64 {
		return maxInt64
	}
	return int64(n)
}
