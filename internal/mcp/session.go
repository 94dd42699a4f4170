package mcp

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/lexcodex/devbridge/internal/lsp"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/refactor"
	"github.com/lexcodex/devbridge/internal/refactor/planner"
)

// Session is the per-connection state spec §4.8 calls for: one dispatcher
// task per session (modeled here as one jsonrpc2.Conn per Session),
// gated by a successful initialize, carrying its own in-flight request
// table for $/cancelRequest, and owning its own LSP pool so that
// language-server child processes are "never shared across sessions"
// (spec §5 "Shared resource policy").
type Session struct {
	ID string

	Planner  *planner.Context
	Executor *refactor.Executor
	Pool     *lsp.Pool
	Registry *plugin.Registry
	Resolver *pathutil.Resolver
	Logger   *log.Logger

	mu            sync.Mutex
	initialized   bool
	authenticated bool
	shuttingDown  bool
	inflight      map[jsonrpc2.ID]context.CancelFunc
}

// NewSession builds a Session around an already-constructed planner
// context and its supporting components (one set per connection, per
// spec §5's "one per extension group per session" server scope).
func NewSession(p *planner.Context, ex *refactor.Executor, pool *lsp.Pool, registry *plugin.Registry, resolver *pathutil.Resolver, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		ID:       uuid.NewString(),
		Planner:  p,
		Executor: ex,
		Pool:     pool,
		Registry: registry,
		Resolver: resolver,
		Logger:   logger.With("session", "mcp"),
		inflight: make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// MarkInitialized records a successful initialize handshake, unlocking
// every other method for this session (spec §4.8 "reject any other
// request until a successful initialize response has been sent").
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}

// Initialized reports whether initialize has already completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// MarkAuthenticated records that this session's bearer token (if any was
// required) has already been checked.
func (s *Session) MarkAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
}

// Authenticated reports whether this session passed the auth gate.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// MarkShuttingDown records a received `shutdown` request, after which
// only `exit` is expected.
func (s *Session) MarkShuttingDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = true
}

// ShuttingDown reports whether `shutdown` has already been received.
func (s *Session) ShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// TrackCall registers id's cancel func so a later $/cancelRequest can
// reach it, and returns a release func the caller must defer once the
// call completes.
func (s *Session) TrackCall(id jsonrpc2.ID, cancel context.CancelFunc) (release func()) {
	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}
}

// CancelCall cancels the in-flight call with the given id, if any is
// still running; a cancel for an unknown or already-finished id is a
// no-op, since the client and server can race harmlessly on completion.
func (s *Session) CancelCall(id jsonrpc2.ID) {
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close releases this session's language-server fleet (spec §5: child
// processes are never shared across sessions, so they die with it).
func (s *Session) Close(ctx context.Context) {
	s.Pool.Shutdown(ctx)
}
