package lspcodec

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeRWC struct {
	io.Reader
	io.Writer
}

func (pipeRWC) Close() error { return nil }

func TestStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(pipeRWC{Reader: &buf, Writer: &buf}, 0)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.NoError(t, s.WriteMessage(body))

	got, err := s.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestStreamHeaderCaseInsensitive(t *testing.T) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "CONTENT-LENGTH: 2\r\nX-Custom: ignored\r\n\r\nhi")
	s := NewStream(pipeRWC{Reader: &buf, Writer: io.Discard}, 0)

	got, err := s.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)
}

func TestStreamMissingContentLength(t *testing.T) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "X-Custom: ignored\r\n\r\n")
	s := NewStream(pipeRWC{Reader: &buf, Writer: io.Discard}, 0)

	_, err := s.ReadMessage()
	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
}

func TestStreamRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: 100\r\n\r\n")
	s := NewStream(pipeRWC{Reader: &buf, Writer: io.Discard}, 10)

	_, err := s.ReadMessage()
	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
}

func TestStreamMalformedHeader(t *testing.T) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "not-a-header-line\r\n\r\n")
	s := NewStream(pipeRWC{Reader: &buf, Writer: io.Discard}, 0)

	_, err := s.ReadMessage()
	require.Error(t, err)
}

func TestObjectStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	os1 := NewObjectStream(NewStream(pipeRWC{Reader: &buf, Writer: &buf}, 0))

	type msg struct {
		Method string `json:"method"`
	}
	require.NoError(t, os1.WriteObject(msg{Method: "initialize"}))

	var got msg
	require.NoError(t, os1.ReadObject(&got))
	assert.Equal(t, "initialize", got.Method)
}
