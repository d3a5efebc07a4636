// Package protocol implements the line-oriented command format spoken by the
// file transfer server and its clients.
//
// A connection carries exactly one command line:
//
//	WRITE <path> <sizeBytes>\n
//	READ <path> <freeSpaceBytes>\n
//	LIST <path>\n
//
// followed, depending on the verb, by a reply line and/or a raw byte stream.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxLineLength is the largest command line accepted, terminator included.
const MaxLineLength = 4096

// Verb identifies the operation requested by a command line.
type Verb string

const (
	VerbWrite Verb = "WRITE"
	VerbRead  Verb = "READ"
	VerbList  Verb = "LIST"
)

var (
	// ErrEmpty is returned when the peer closes before sending any byte.
	ErrEmpty = errors.New("empty command")

	// ErrLineTooLong is returned when no newline appears within MaxLineLength bytes.
	ErrLineTooLong = errors.New("command line too long")

	// ErrUnknownVerb is returned for verbs other than WRITE, READ and LIST.
	ErrUnknownVerb = errors.New("unknown command")

	// ErrMalformed is returned when a known verb has missing or invalid arguments.
	ErrMalformed = errors.New("malformed command")
)

// Command is one parsed command line.
type Command struct {
	Verb Verb

	// Path is relative to the server root and used verbatim.
	Path string

	// Size is the declared upload size for WRITE and the client's free
	// space for READ. Unused for LIST.
	Size int64
}

// ReadCommand reads a single command line from r and parses it.
//
// A line terminated by end-of-stream instead of '\n' is accepted.
func ReadCommand(r *bufio.Reader) (*Command, error) {
	line, err := r.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return nil, ErrLineTooLong
	case errors.Is(err, io.EOF):
		if len(line) == 0 {
			return nil, ErrEmpty
		}
	case err != nil:
		return nil, fmt.Errorf("receive command: %w", err)
	}

	return ParseCommand(string(line))
}

// ParseCommand parses "VERB ARG1 [ARG2]". Extra trailing fields are ignored.
func ParseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmpty
	}

	cmd := &Command{Verb: Verb(fields[0])}

	switch cmd.Verb {
	case VerbWrite, VerbRead:
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: %s requires a path and a size", ErrMalformed, cmd.Verb)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: invalid size %q", ErrMalformed, fields[2])
		}
		cmd.Path = fields[1]
		cmd.Size = size
	case VerbList:
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: LIST requires a path", ErrMalformed)
		}
		cmd.Path = fields[1]
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerb, fields[0])
	}

	return cmd, nil
}

// String renders the command as it is sent on the wire, newline included.
func (c Command) String() string {
	if c.Verb == VerbList {
		return fmt.Sprintf("%s %s\n", c.Verb, c.Path)
	}
	return fmt.Sprintf("%s %s %d\n", c.Verb, c.Path, c.Size)
}
