package lsp

import (
	"testing"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSupervisorStartsDeadWithDefaults(t *testing.T) {
	s := NewSupervisor(Config{LanguageTag: "go"}, "/proj", nil)
	assert.Equal(t, StateDead, s.State())
	assert.Equal(t, 0, s.RestartCount())
	assert.Equal(t, 0, s.QueueDepth())
	assert.Equal(t, 64, s.cfg.ReadyQueueLimit)
}

// Bounded readiness queue: spec §4.3 "queues, bounded (default 64
// requests) with oldest-wins rejection" — already-queued callers are
// never evicted; a new arrival once the queue is full is rejected
// immediately.
func TestEnqueueReadyRejectsOnceLimitReached(t *testing.T) {
	s := NewSupervisor(Config{LanguageTag: "go", ReadyQueueLimit: 2}, "/proj", nil)

	first, err := s.enqueueReady()
	require.NoError(t, err)
	assert.Equal(t, 1, s.QueueDepth())

	second, err := s.enqueueReady()
	require.NoError(t, err)
	assert.Equal(t, 2, s.QueueDepth())

	_, err = s.enqueueReady()
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.ServerNotReady, e.Kind)
	assert.Equal(t, 2, s.QueueDepth(), "a rejected new arrival must not evict an already-queued request")

	s.dequeueReady(first)
	assert.Equal(t, 1, s.QueueDepth())

	// with a slot freed, a new arrival is admitted again
	third, err := s.enqueueReady()
	require.NoError(t, err)
	assert.Equal(t, 2, s.QueueDepth())

	s.dequeueReady(second)
	s.dequeueReady(third)
	assert.Equal(t, 0, s.QueueDepth())
}

func TestDequeueReadyIsNoopForUnknownEntry(t *testing.T) {
	s := NewSupervisor(Config{LanguageTag: "go"}, "/proj", nil)
	pr, err := s.enqueueReady()
	require.NoError(t, err)

	s.dequeueReady(&pendingRequest{})
	assert.Equal(t, 1, s.QueueDepth(), "dequeueReady must only remove the exact entry passed in")

	s.dequeueReady(pr)
	assert.Equal(t, 0, s.QueueDepth())
}
