package lsp

import (
	"context"
	"os"
	"time"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/proto"
	lsp "go.lsp.dev/protocol"
)

// DidOpen opens uri on the remote server if it isn't already open,
// reading fresh content from disk (spec §4.4: "the text content is read
// fresh from disk").
func (s *Supervisor) DidOpen(ctx context.Context, uri proto.URI, languageID string) error {
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}
	if _, ok := s.docs.get(uri); ok {
		return nil
	}
	path, err := pathutil.FromURI(string(uri))
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "resolve uri %s", uri)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "read %s", path)
	}
	return s.didOpenLocked(ctx, uri, languageID, string(data))
}

func (s *Supervisor) didOpenLocked(ctx context.Context, uri proto.URI, languageID, text string) error {
	params := lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        lsp.DocumentURI(uri),
			LanguageID: lsp.LanguageIdentifier(languageID),
			Version:    1,
			Text:       text,
		},
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errs.New(errs.ServerNotReady, "no connection to language server %q", s.cfg.LanguageTag)
	}
	if err := conn.Notify(ctx, "textDocument/didOpen", params); err != nil {
		return errs.Wrap(errs.LspRequestFailed, err, "didOpen %s", uri)
	}
	s.docs.put(&document{uri: uri, languageID: languageID, version: 1, text: text, syncState: DocOpen})
	return nil
}

// DidClose closes uri on the remote server. Called on eviction or server
// restart, per spec §4.4.
func (s *Supervisor) DidClose(ctx context.Context, uri proto.URI) error {
	if _, ok := s.docs.get(uri); !ok {
		return nil
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.docs.delete(uri)
		return nil
	}
	params := lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
	}
	err := conn.Notify(ctx, "textDocument/didClose", params)
	s.docs.delete(uri)
	if err != nil {
		return errs.Wrap(errs.LspRequestFailed, err, "didClose %s", uri)
	}
	return nil
}

// Resync closes and reopens uri with freshly-read content, matching
// spec §4.4's deliberate choice not to use textDocument/didChange: the
// executor writes to disk, then the session resyncs the whole file so
// the server always re-parses from scratch.
func (s *Supervisor) Resync(ctx context.Context, uri proto.URI, languageID string) error {
	_ = s.DidClose(ctx, uri)
	return s.DidOpen(ctx, uri, languageID)
}

// isWorkspaceMethod reports whether method should use the extended
// workspace-scoped request deadline (spec §4.4).
func isWorkspaceMethod(method string) bool {
	return method == "workspace/symbol" || method == "workspace/executeCommand"
}

// Call issues a correlated LSP request, applying the per-request or
// workspace-scoped deadline and capability gating (spec §4.4). result
// must be a pointer, or nil to discard the response.
func (s *Supervisor) Call(ctx context.Context, method string, capCheck func(lsp.ServerCapabilities) bool, hint string, params, result any) error {
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	caps := s.capabilities
	conn := s.conn
	s.mu.Unlock()

	if capCheck != nil && !capCheck(caps) {
		return errs.New(errs.CapabilityUnavailable, "language server %q does not advertise %s", s.cfg.LanguageTag, hint).
			WithDetail("feature", hint)
	}

	timeout := s.cfg.RequestTimeout
	if isWorkspaceMethod(method) {
		timeout = s.cfg.WorkspaceRequestTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()

	err := conn.Call(callCtx, method, params, result)
	if err != nil {
		if callCtx.Err() == context.Canceled {
			return errs.Wrap(errs.Cancelled, err, "%s cancelled", method)
		}
		if callCtx.Err() == context.DeadlineExceeded {
			return errs.Wrap(errs.LspRequestFailed, err, "%s timed out after %s", method, timeout)
		}
		return errs.Wrap(errs.LspRequestFailed, err, "%s", method)
	}
	return nil
}

// Notify issues a fire-and-forget LSP notification.
func (s *Supervisor) Notify(ctx context.Context, method string, params any) error {
	if err := s.EnsureReady(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if err := conn.Notify(ctx, method, params); err != nil {
		return errs.Wrap(errs.LspRequestFailed, err, "%s", method)
	}
	return nil
}

// CancelRequest sends $/cancelRequest for a previously-issued id, per
// spec §4.4 "Cancellation". jsonrpc2.Conn already tracks in-flight calls
// by id internally; this notifies the remote server so it can abandon
// its own work, independent of whether it honors cancellation.
func (s *Supervisor) CancelRequest(ctx context.Context, id jsonrpc2IDCompat) error {
	return s.Notify(ctx, "$/cancelRequest", map[string]any{"id": id})
}

// jsonrpc2IDCompat exists so callers don't need to import jsonrpc2 just
// to pass an id through to CancelRequest.
type jsonrpc2IDCompat = any

// Capabilities returns the server's advertised capabilities, valid once
// the server is Ready.
func (s *Supervisor) Capabilities() lsp.ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// OpenDocumentURIs returns the set of currently-open document URIs.
func (s *Supervisor) OpenDocumentURIs() []proto.URI {
	docs := s.docs.all()
	out := make([]proto.URI, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.uri)
	}
	return out
}

// Diagnostics returns the most recent textDocument/publishDiagnostics
// push cached for uri, or nil if the server has never published any for
// it. This is the only place in the tree that trusts server-pushed
// state; the executor always re-reads files and checksums directly.
func (s *Supervisor) Diagnostics(uri proto.URI) []lsp.Diagnostic {
	return s.diagnostics.get(uri)
}
