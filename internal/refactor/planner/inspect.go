package planner

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/proto"
	lsp "go.lsp.dev/protocol"
)

func definitionCapCheck(caps lsp.ServerCapabilities) bool { return caps.DefinitionProvider != nil }
func referencesCapCheck(caps lsp.ServerCapabilities) bool { return caps.ReferencesProvider != nil }
func hoverCapCheck(caps lsp.ServerCapabilities) bool      { return caps.HoverProvider != nil }
func symbolCapCheck(caps lsp.ServerCapabilities) bool     { return caps.DocumentSymbolProvider != nil }
func workspaceSymbolCapCheck(caps lsp.ServerCapabilities) bool {
	return caps.WorkspaceSymbolProvider != nil
}

// Definition resolves the declaration of the symbol at (file, pos), the
// first of `inspect_code`'s position-based queries (spec §6 "tool
// surface").
func (c *Context) Definition(ctx context.Context, file string, pos proto.Position) ([]lsp.Location, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	params := lsp.DefinitionParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
			Position:     pos,
		},
	}
	var locs []lsp.Location
	if err := sup.Call(ctx, "textDocument/definition", definitionCapCheck, "definition", params, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// References finds every use of the symbol at (file, pos), optionally
// including its own declaration.
func (c *Context) References(ctx context.Context, file string, pos proto.Position, includeDeclaration bool) ([]lsp.Location, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
			Position:     pos,
		},
		Context: lsp.ReferenceContext{IncludeDeclaration: includeDeclaration},
	}
	var locs []lsp.Location
	if err := sup.Call(ctx, "textDocument/references", referencesCapCheck, "references", params, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// Hover returns the hover markup for the symbol at (file, pos), or "" if
// the server has nothing to show.
func (c *Context) Hover(ctx context.Context, file string, pos proto.Position) (string, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return "", err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return "", err
	}
	params := lsp.HoverParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
			Position:     pos,
		},
	}
	var result lsp.Hover
	if err := sup.Call(ctx, "textDocument/hover", hoverCapCheck, "hover", params, &result); err != nil {
		return "", err
	}
	return result.Contents.Value, nil
}

// Diagnostics returns the most recently published diagnostics for file.
// Opening the document ensures the server has seen it and had a chance
// to publish at least once; the result itself comes from the session's
// publishDiagnostics cache rather than a live request, since diagnostics
// are push-only in every language server this tree has been grounded
// against.
func (c *Context) Diagnostics(ctx context.Context, file string) ([]lsp.Diagnostic, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return sup.Diagnostics(uri), nil
}

// DocumentSymbols lists the declarations in a single file (spec §6
// `search_code`, document-scoped mode).
func (c *Context) DocumentSymbols(ctx context.Context, file string) ([]lsp.DocumentSymbol, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	params := lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
	}
	var raw []any
	if err := sup.Call(ctx, "textDocument/documentSymbol", symbolCapCheck, "documentSymbol", params, &raw); err != nil {
		return nil, err
	}
	return decodeDocumentSymbols(raw)
}

// WorkspaceSymbol searches every configured language server for symbols
// matching query (spec §6 `search_code`, workspace-scoped mode). Per
// spec §9 "Cancellation and long LSP requests", this is budgeted by the
// per-call context deadline the dispatcher already applies. Servers
// without workspace/symbol support are skipped; any other error,
// including an interrupted call, discards the results already gathered
// and returns only the error.
func (c *Context) WorkspaceSymbol(ctx context.Context, query string) ([]lsp.SymbolInformation, error) {
	var out []lsp.SymbolInformation
	for _, sup := range c.Pool.All() {
		var syms []lsp.SymbolInformation
		err := sup.Call(ctx, "workspace/symbol", workspaceSymbolCapCheck, "workspaceSymbol", lsp.WorkspaceSymbolParams{Query: query}, &syms)
		if err != nil {
			if e, ok := errs.As(err); ok && e.Kind == errs.CapabilityUnavailable {
				continue
			}
			return nil, err
		}
		out = append(out, syms...)
	}
	return out, nil
}

// decodeDocumentSymbols re-marshals the raw documentSymbol response,
// which the LSP spec allows to be either DocumentSymbol[] or
// SymbolInformation[], into the hierarchical DocumentSymbol shape the
// tool surface always returns; flat SymbolInformation entries become
// childless DocumentSymbols.
func decodeDocumentSymbols(raw []any) ([]lsp.DocumentSymbol, error) {
	out := make([]lsp.DocumentSymbol, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, hasRange := m["range"]; hasRange {
			out = append(out, mapToDocumentSymbol(m))
			continue
		}
		name, _ := m["name"].(string)
		out = append(out, lsp.DocumentSymbol{Name: name})
	}
	return out, nil
}

func mapToDocumentSymbol(m map[string]any) lsp.DocumentSymbol {
	var ds lsp.DocumentSymbol
	if b, err := json.Marshal(m); err == nil {
		_ = json.Unmarshal(b, &ds)
	}
	return ds
}
