package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/marmos91/ftserver/pkg/adapter/ft"
	"github.com/marmos91/ftserver/pkg/admission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a real server on an ephemeral port and returns a client
// for it together with the server root.
func startServer(t *testing.T, cfg Config) (*Client, string) {
	t.Helper()

	root := t.TempDir()
	adapter := ft.New(ft.Config{RootDirectory: root, ShutdownTimeout: time.Second}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = adapter.ServeListener(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	cfg.Address = host
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	c, err := New(cfg)
	require.NoError(t, err)
	return c, root
}

func TestNew_InvalidPort(t *testing.T) {
	_, err := New(Config{Address: "localhost", Port: 0})
	assert.Error(t, err)
}

func TestWriteThenRead(t *testing.T) {
	c, root := startServer(t, Config{})
	ctx := context.Background()
	local := t.TempDir()

	data := make([]byte, 50_000)
	_, err := rand.Read(data)
	require.NoError(t, err)
	src := filepath.Join(local, "src.bin")
	require.NoError(t, os.WriteFile(src, data, 0o600))

	n, err := c.Write(ctx, src, "remote.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	onServer, err := os.ReadFile(filepath.Join(root, "remote.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, onServer))

	dst := filepath.Join(local, "dst.bin")
	n, err = c.Read(ctx, "remote.bin", dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	downloaded, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, downloaded))
}

func TestRead_EmptyFile(t *testing.T) {
	c, root := startServer(t, Config{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty"), nil, 0o600))

	dst := filepath.Join(t.TempDir(), "empty")
	n, err := c.Read(context.Background(), "empty", dst)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.FileExists(t, dst)
}

func TestRead_RemoteErrors(t *testing.T) {
	c, root := startServer(t, Config{
		FreeSpace: func(string) (uint64, error) { return 4, nil },
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "big"), []byte("12345"), 0o600))
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		dst := filepath.Join(dir, "missing")
		_, err := c.Read(context.Background(), "missing", dst)

		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "File open failed: No such file or directory", remote.Reason)
		assert.NoFileExists(t, dst)
	})

	t.Run("NotEnoughLocalSpace", func(t *testing.T) {
		_, err := c.Read(context.Background(), "big", filepath.Join(dir, "big"))

		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "Not enough disk space", remote.Reason)
	})
}

func TestWrite_RemoteError(t *testing.T) {
	c, _ := startServer(t, Config{})
	src := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err := c.Write(context.Background(), src, "no/such/dir/f")

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "No such directory", remote.Reason)
}

func TestWrite_MissingLocalFile(t *testing.T) {
	c, _ := startServer(t, Config{})
	_, err := c.Write(context.Background(), filepath.Join(t.TempDir(), "nope"), "x")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestList(t *testing.T) {
	c, root := startServer(t, Config{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o700))

	names, err := c.List(context.Background(), "/")
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{".", "..", "a.txt", "sub"}, names)

	_, err = c.List(context.Background(), "/missing")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Directory open failed", remote.Reason)
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	c, err := New(Config{Address: "127.0.0.1", Port: port, FreeSpace: admission.FreeSpace})
	require.NoError(t, err)

	_, err = c.List(context.Background(), "/")
	assert.Error(t, err)
}
