package mcp

import (
	"context"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/devbridge/internal/lsp"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	pool := lsp.NewPool("/proj", nil, nil)
	return NewSession(nil, nil, pool, nil, nil, nil)
}

func TestNewSessionAssignsUniqueID(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestInitializedAuthenticatedShuttingDownGates(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.Initialized())
	s.MarkInitialized()
	assert.True(t, s.Initialized())

	assert.False(t, s.Authenticated())
	s.MarkAuthenticated()
	assert.True(t, s.Authenticated())

	assert.False(t, s.ShuttingDown())
	s.MarkShuttingDown()
	assert.True(t, s.ShuttingDown())
}

func TestTrackCallAndCancelCall(t *testing.T) {
	s := newTestSession(t)
	id := jsonrpc2.ID{Num: 1}
	cancelled := false
	release := s.TrackCall(id, func() { cancelled = true })

	s.CancelCall(id)
	assert.True(t, cancelled)

	release()
	// a second cancel after release is a harmless no-op
	s.CancelCall(id)
}

func TestCancelCallOnUnknownIDIsNoop(t *testing.T) {
	s := newTestSession(t)
	assert.NotPanics(t, func() { s.CancelCall(jsonrpc2.ID{Num: 99}) })
}

// Spec §5 "Shared resource policy": each session owns its own LSP fleet,
// so closing one session's Pool must never affect another's.
func TestCloseOnlyShutsDownOwnPool(t *testing.T) {
	cfgs := []lsp.Config{{LanguageTag: "go", Extensions: []string{".go"}}}
	poolA := lsp.NewPool("/proj", cfgs, nil)
	poolB := lsp.NewPool("/proj", cfgs, nil)
	sessA := NewSession(nil, nil, poolA, nil, nil, nil)
	sessB := NewSession(nil, nil, poolB, nil, nil, nil)

	require.NotSame(t, poolA, poolB)
	assert.NotEqual(t, sessA.ID, sessB.ID)

	sessA.Close(context.Background())

	// poolB must remain fully usable after sessA tears its own pool down.
	assert.NotPanics(t, func() { poolB.Describe() })
	assert.Empty(t, poolB.Describe())

	sessB.Close(context.Background())
}
