// Package transport implements the two wire surfaces spec §4.8 requires
// for MCP sessions: newline-framed JSON-RPC over stdio, and text-frame
// JSON-RPC over WebSocket. Both produce a jsonrpc2.ObjectStream so
// internal/mcp's Dispatcher can drive either one identically through
// jsonrpc2.NewConn, the same pattern internal/lspcodec uses to let the
// LSP supervisor stay agnostic of how its child process is framed.
package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// StdioStream adapts a pair of stdio-style streams (typically os.Stdin
// and os.Stdout) to jsonrpc2.ObjectStream using newline-delimited JSON,
// distinct from internal/lspcodec's Content-Length framing: stdio MCP
// clients (spec §4.8 "stdio transport") send one complete JSON value per
// line rather than a headers-then-body frame.
type StdioStream struct {
	r      *bufio.Reader
	w      io.Writer
	closer io.Closer

	writeMu sync.Mutex
}

// NewStdioStream wraps r and w, closing closer (if non-nil) on Close.
func NewStdioStream(r io.Reader, w io.Writer, closer io.Closer) *StdioStream {
	return &StdioStream{r: bufio.NewReader(r), w: w, closer: closer}
}

// WriteObject marshals v to a single JSON line terminated by "\n".
func (s *StdioStream) WriteObject(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.w.Write(body); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n"))
	return err
}

// ReadObject reads one line and unmarshals it into v, skipping blank
// lines (some clients emit a trailing newline after their last message).
func (s *StdioStream) ReadObject(v any) error {
	for {
		line, err := s.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return err
		}
		trimmed := trimNewline(line)
		if len(trimmed) == 0 {
			if err != nil {
				return err
			}
			continue
		}
		return json.Unmarshal(trimmed, v)
	}
}

// Close closes the underlying closer, if one was given.
func (s *StdioStream) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func trimNewline(b []byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r') {
		n--
	}
	return b[:n]
}
