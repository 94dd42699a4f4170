package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestEmitIncludesEventName(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})

	Emit(logger, EventToolCalled, "tool", "rename_all")

	out := buf.String()
	assert.True(t, strings.Contains(out, EventToolCalled))
	assert.True(t, strings.Contains(out, "rename_all"))
}

func TestEmitErrorWritesAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})

	EmitError(logger, EventToolFailed, "tool", "prune", "err", "boom")

	out := buf.String()
	assert.True(t, strings.Contains(out, EventToolFailed))
	assert.True(t, strings.Contains(out, "boom"))
}

func TestEmitFallsBackToDefaultLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, EventPlanGenerated, "planType", "rename_symbol")
	})
}
