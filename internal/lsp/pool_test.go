package lsp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorForUnknownExtensionFails(t *testing.T) {
	p := NewPool("/proj", []Config{{LanguageTag: "go", Extensions: []string{".go"}}}, nil)
	defer p.Shutdown(context.Background())

	_, err := p.supervisorFor(".rs")
	require.Error(t, err)
}

func TestSupervisorForLazilyInstantiatesOncePerExtension(t *testing.T) {
	p := NewPool("/proj", []Config{{LanguageTag: "go", Extensions: []string{".go", ".mod"}}}, nil)
	defer p.Shutdown(context.Background())

	assert.Empty(t, p.All())

	sup1, err := p.supervisorFor(".go")
	require.NoError(t, err)
	sup2, err := p.supervisorFor(".mod")
	require.NoError(t, err)
	assert.Same(t, sup1, sup2, "both extensions of one language config share a single supervisor")
	assert.Len(t, p.All(), 1)
}

// Two independently-constructed pools (as every MCP session builds, spec
// §5 "never shared across sessions") must never share a supervisor, and
// shutting one down must not disturb the other's state.
func TestTwoPoolsAreFullyIsolated(t *testing.T) {
	cfgs := []Config{{LanguageTag: "go", Extensions: []string{".go"}}}
	poolA := NewPool("/proj", cfgs, nil)
	poolB := NewPool("/proj", cfgs, nil)

	supA, err := poolA.supervisorFor(".go")
	require.NoError(t, err)
	supB, err := poolB.supervisorFor(".go")
	require.NoError(t, err)
	assert.NotSame(t, supA, supB)

	poolA.Shutdown(context.Background())

	assert.Len(t, poolB.All(), 1, "shutting down pool A must not remove pool B's supervisor")
	assert.Same(t, supB, poolB.All()[0])
}

func TestDescribeReportsAllFiveHealthFields(t *testing.T) {
	p := NewPool("/proj", []Config{{LanguageTag: "go", Extensions: []string{".go"}}}, nil)
	defer p.Shutdown(context.Background())

	_, err := p.supervisorFor(".go")
	require.NoError(t, err)

	entries := p.Describe()
	require.Len(t, entries, 1)
	assert.Equal(t, "go", entries[0].Language)
	assert.Equal(t, string(StateDead), entries[0].State)
	assert.Equal(t, 0, entries[0].RestartCount)
	assert.Equal(t, 0, entries[0].OpenDocuments)
	assert.Equal(t, 0, entries[0].QueueDepth)
	assert.True(t, entries[0].LastActivity.IsZero())
}
