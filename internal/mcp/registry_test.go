package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
}

func (s stubTool) Name() string                 { return s.name }
func (s stubTool) Description() string          { return "stub " + s.name }
func (s stubTool) InputSchema() json.RawMessage { return json.RawMessage(`{}`) }
func (s stubTool) Handle(ctx context.Context, sess *Session, args json.RawMessage) (any, error) {
	return s.name, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "prune"})

	tool, ok := r.Lookup("prune")
	require.True(t, ok)
	assert.Equal(t, "prune", tool.Name())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "prune"})
	r.Register(stubTool{name: "prune"})

	assert.Len(t, r.Descriptors(), 1)
}

func TestRegistryDescriptorsSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "workspace"})
	r.Register(stubTool{name: "health_check"})
	r.Register(stubTool{name: "prune"})

	descs := r.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, []string{"health_check", "prune", "workspace"},
		[]string{descs[0].Name, descs[1].Name, descs[2].Name})
}
