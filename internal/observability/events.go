// Package observability names the structured log events devbridge's
// long-lived components emit, so a log aggregator can key on a stable
// "event" field instead of parsing free-text messages. Built on
// charmbracelet/log, the same structured logger every component in this
// tree already holds, rather than introducing a separate metrics or
// tracing dependency the pack never demonstrates for this kind of
// process.
package observability

import "github.com/charmbracelet/log"

// Event names used across the supervisor, executor, and MCP dispatcher.
const (
	EventSessionInitialized = "session.initialized"
	EventToolCalled         = "tool.called"
	EventToolFailed         = "tool.failed"
	EventPlanGenerated      = "plan.generated"
	EventApplyCommitted     = "apply.committed"
	EventApplyRolledBack    = "apply.rolled_back"
	EventServerStateChanged = "server.state_changed"
)

// Emit logs name at info level with fields attached, via logger. Callers
// that already hold a component-scoped *log.Logger (the supervisor, the
// dispatcher) pass it straight through so the event carries whatever
// fields that logger's .With() chain already set.
func Emit(logger *log.Logger, name string, keyvals ...any) {
	if logger == nil {
		logger = log.Default()
	}
	args := append([]any{"event", name}, keyvals...)
	logger.Info(name, args...)
}

// EmitError logs name at error level, for failure events where the
// message itself should read as a failure rather than a routine
// transition.
func EmitError(logger *log.Logger, name string, keyvals ...any) {
	if logger == nil {
		logger = log.Default()
	}
	args := append([]any{"event", name}, keyvals...)
	logger.Error(name, args...)
}
