// Package lsp implements the LSP supervision layer (spec §4.3) and the
// per-server session (spec §4.4): process lifecycle, the initialize
// handshake, readiness gating, restart policy, document sync, request
// correlation, cancellation, and capability gating. It is built directly
// on the teacher's own LSP-client plumbing
// (tools/lsp_process_client.go): os/exec to spawn the child,
// sourcegraph/jsonrpc2 for request/response correlation, and
// go.lsp.dev/protocol for the wire types — with internal/lspcodec taking
// over the base-protocol framing that the teacher delegated to
// jsonrpc2.VSCodeObjectCodec.
package lsp

import (
	"sync"
	"time"

	"github.com/lexcodex/devbridge/internal/proto"
	lsp "go.lsp.dev/protocol"
)

// State is the supervisor's process lifecycle state (spec §4.3).
type State string

const (
	StateSpawning     State = "Spawning"
	StateInitializing State = "Initializing"
	StateReady        State = "Ready"
	StateDegraded     State = "Degraded"
	StateRestarting   State = "Restarting"
	StateDead         State = "Dead"
)

// DocSyncState tracks whether a document is known to the remote server.
type DocSyncState string

const (
	DocClosed      DocSyncState = "Closed"
	DocOpen        DocSyncState = "Open"
	DocDirtyLocal  DocSyncState = "DirtyLocally"
)

// Config describes how to launch and manage one language server.
type Config struct {
	LanguageTag            string
	Extensions             []string
	Command                []string
	InitializationOptions  any
	RestartIntervalMinutes int // 0 disables periodic auto-restart
	InitializeTimeout      time.Duration
	RequestTimeout         time.Duration
	WorkspaceRequestTimeout time.Duration
	ShutdownGraceTimeout   time.Duration
	ReadyQueueLimit        int
	ReadyQueueGrace        time.Duration
}

// withDefaults fills zero-value fields with spec-mandated defaults.
func (c Config) withDefaults() Config {
	if c.InitializeTimeout == 0 {
		c.InitializeTimeout = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.WorkspaceRequestTimeout == 0 {
		c.WorkspaceRequestTimeout = 120 * time.Second
	}
	if c.ShutdownGraceTimeout == 0 {
		c.ShutdownGraceTimeout = 5 * time.Second
	}
	if c.ReadyQueueLimit == 0 {
		c.ReadyQueueLimit = 64
	}
	if c.ReadyQueueGrace == 0 {
		c.ReadyQueueGrace = 10 * time.Second
	}
	return c
}

// document mirrors spec §3's LspDocument.
type document struct {
	uri        proto.URI
	languageID string
	version    int32
	text       string
	syncState  DocSyncState
}

// documentTable is a small concurrency-safe map of open documents.
type documentTable struct {
	mu   sync.Mutex
	docs map[proto.URI]*document
}

func newDocumentTable() *documentTable {
	return &documentTable{docs: make(map[proto.URI]*document)}
}

func (t *documentTable) get(uri proto.URI) (*document, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.docs[uri]
	return d, ok
}

func (t *documentTable) put(d *document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs[d.uri] = d
}

func (t *documentTable) delete(uri proto.URI) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.docs, uri)
}

func (t *documentTable) all() []*document {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*document, 0, len(t.docs))
	for _, d := range t.docs {
		out = append(out, d)
	}
	return out
}

// diagnosticsTable caches the most recent textDocument/publishDiagnostics
// push per URI, consulted only by the inspect_code tool handler.
type diagnosticsTable struct {
	mu    sync.Mutex
	byURI map[proto.URI][]lsp.Diagnostic
}

func newDiagnosticsTable() *diagnosticsTable {
	return &diagnosticsTable{byURI: make(map[proto.URI][]lsp.Diagnostic)}
}

func (t *diagnosticsTable) put(uri proto.URI, diags []lsp.Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byURI[uri] = diags
}

func (t *diagnosticsTable) get(uri proto.URI) []lsp.Diagnostic {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byURI[uri]
}
