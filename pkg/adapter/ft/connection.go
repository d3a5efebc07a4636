package ft

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/ftserver/internal/logger"
	"github.com/marmos91/ftserver/internal/protocol"
	"github.com/marmos91/ftserver/pkg/journal"
	"github.com/marmos91/ftserver/pkg/metrics"
)

// Log kinds for the failure taxonomy.
const (
	kindCapacity   = "capacity"
	kindFilesystem = "filesystem"
	kindTransport  = "transport"
	kindProtocol   = "protocol"
)

// connection serves exactly one command and then closes.
type connection struct {
	server *Adapter
	conn   net.Conn
	id     string

	// reader holds the command line; any payload bytes that arrived with it
	// stay buffered here and are consumed by the WRITE transfer.
	reader *bufio.Reader
}

func newConnection(server *Adapter, conn net.Conn) *connection {
	return &connection{
		server: server,
		conn:   conn,
		id:     uuid.NewString()[:8],
		reader: bufio.NewReaderSize(conn, server.config.MaxCommandLine),
	}
}

// Serve reads one command, dispatches it and closes the connection.
// Panics are recovered so one connection cannot take the server down.
func (c *connection) Serve() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in FT handler conn=%s from %s: %v", c.id, c.conn.RemoteAddr(), r)
		}
		_ = c.conn.Close()
	}()

	cmd, err := protocol.ReadCommand(c.reader)
	if err != nil {
		c.logReadError(err)
		return
	}

	logger.Debug("FT command conn=%s: %s %s %d", c.id, cmd.Verb, cmd.Path, cmd.Size)
	c.dispatch(cmd)
}

func (c *connection) logReadError(err error) {
	switch {
	case errors.Is(err, protocol.ErrEmpty):
		logger.Debug("FT conn=%s closed before sending a command", c.id)
	case errors.Is(err, protocol.ErrUnknownVerb),
		errors.Is(err, protocol.ErrMalformed),
		errors.Is(err, protocol.ErrLineTooLong):
		c.server.metrics.RecordCommand("UNKNOWN", 0, metrics.OutcomeProtocol)
		logger.Warn("FT conn=%s kind=%s: %v", c.id, kindProtocol, err)
	default:
		logger.Warn("FT conn=%s kind=%s: receive command: %v", c.id, kindTransport, err)
	}
}

// result is what a handler reports back to dispatch.
type result struct {
	bytes   int64
	outcome string
	err     error
}

func ok(bytes int64) result {
	return result{bytes: bytes, outcome: metrics.OutcomeOK}
}

func failed(outcome string, bytes int64, err error) result {
	return result{bytes: bytes, outcome: outcome, err: err}
}

func (c *connection) dispatch(cmd *protocol.Command) {
	verb := string(cmd.Verb)
	entry := journal.NewEntry(c.id, verb, cmd.Path)

	c.server.metrics.RecordCommandStart(verb)
	defer c.server.metrics.RecordCommandEnd(verb)

	var res result
	switch cmd.Verb {
	case protocol.VerbWrite:
		res = c.handleWrite(cmd)
	case protocol.VerbRead:
		res = c.handleRead(cmd)
	case protocol.VerbList:
		res = c.handleList(cmd)
	}

	entry.Duration = time.Since(entry.Started)
	entry.Bytes = res.bytes
	entry.Outcome = res.outcome

	c.server.metrics.RecordCommand(verb, entry.Duration, res.outcome)

	if res.err != nil {
		entry.Error = res.err.Error()
		logger.Warn("FT %s %s failed conn=%s kind=%s: %v", verb, cmd.Path, c.id, res.outcome, res.err)
	} else {
		logger.Info("FT %s %s conn=%s bytes=%d duration=%v", verb, cmd.Path, c.id, res.bytes, entry.Duration)
	}

	if err := c.server.journal.Record(context.Background(), entry); err != nil {
		logger.Debug("FT conn=%s: journal record failed: %v", c.id, err)
	}
}

// reply sends a single protocol line. A failure here is a transport error
// and only logged; the connection is closed right after anyway.
func (c *connection) reply(line string) error {
	_, err := io.WriteString(c.conn, line)
	if err != nil {
		logger.Debug("FT conn=%s: send reply: %v", c.id, err)
	}
	return err
}
