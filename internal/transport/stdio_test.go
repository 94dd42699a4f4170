package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdioStream(&buf, &buf, nil)

	type msg struct {
		Method string `json:"method"`
	}
	require.NoError(t, s.WriteObject(msg{Method: "initialize"}))

	var got msg
	require.NoError(t, s.ReadObject(&got))
	assert.Equal(t, "initialize", got.Method)
}

func TestStdioStreamSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\n\n{\"method\":\"initialize\"}\n")
	s := NewStdioStream(&buf, &bytes.Buffer{}, nil)

	var got struct {
		Method string `json:"method"`
	}
	require.NoError(t, s.ReadObject(&got))
	assert.Equal(t, "initialize", got.Method)
}

func TestStdioStreamMultipleObjects(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdioStream(&buf, &buf, nil)

	require.NoError(t, s.WriteObject(map[string]int{"a": 1}))
	require.NoError(t, s.WriteObject(map[string]int{"b": 2}))

	var first, second map[string]int
	require.NoError(t, s.ReadObject(&first))
	require.NoError(t, s.ReadObject(&second))
	assert.Equal(t, 1, first["a"])
	assert.Equal(t, 2, second["b"])
}

func TestStdioStreamReadEOF(t *testing.T) {
	s := NewStdioStream(&bytes.Buffer{}, &bytes.Buffer{}, nil)
	var got map[string]int
	err := s.ReadObject(&got)
	require.Error(t, err)
}

type closeTracker struct{ closed bool }

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestStdioStreamClosesUnderlying(t *testing.T) {
	tracker := &closeTracker{}
	s := NewStdioStream(&bytes.Buffer{}, &bytes.Buffer{}, tracker)
	require.NoError(t, s.Close())
	assert.True(t, tracker.closed)
}
