package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// FramingError reports a malformed or missing Content-Length header on an
// otherwise live stream. It is message-local: the caller may log it and keep
// reading.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "framing: " + e.Reason
}

// ParseError reports invalid JSON inside a correctly framed payload. Like
// FramingError it is message-local.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsRecoverable reports whether a read error is local to one message.
// Stream-level failures (EOF, short body reads, closed pipes) are not
// recoverable and must tear down the connection.
func IsRecoverable(err error) bool {
	var fe *FramingError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}

// Codec reads and writes Content-Length framed JSON-RPC messages as
// specified by the LSP base protocol. The reader is buffered and persistent,
// so bytes past the current frame remain available to the next ReadMessage.
// Writes are serialized internally: concurrent writers never interleave
// partial frames.
type Codec struct {
	reader *bufio.Reader
	writer io.Writer
	wmu    sync.Mutex
}

// NewCodec creates a codec over the given streams.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{
		reader: bufio.NewReaderSize(r, 64*1024),
		writer: w,
	}
}

// WriteMessage marshals v to compact JSON and writes it as a single frame.
// The Content-Length header counts UTF-8 bytes, not characters.
func (c *Codec) WriteMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(data))
	buf.Write(data)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.writer.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads one frame and returns its payload. Header lines other
// than Content-Length are ignored. A missing or malformed Content-Length
// yields a *FramingError; an I/O failure (including a short body read) is
// returned as-is and ends the stream.
func (c *Codec) ReadMessage() ([]byte, error) {
	contentLen := -1
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		val := strings.TrimSpace(line[colon+1:])

		if strings.EqualFold(key, "Content-Length") {
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return nil, &FramingError{Reason: fmt.Sprintf("invalid Content-Length %q", val)}
			}
			contentLen = n
		}
	}

	if contentLen < 0 {
		return nil, &FramingError{Reason: "missing Content-Length header"}
	}

	body := make([]byte, contentLen)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
