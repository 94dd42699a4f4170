package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
)

// searchCodeTool is the `search_code` tool of spec §6: symbol search,
// either workspace-wide (a query string, no file) or constrained to a
// single file's own document symbols.
type searchCodeTool struct{}

func (searchCodeTool) Name() string { return "search_code" }

func (searchCodeTool) Description() string {
	return "Search for symbols by name across the workspace, or list a single file's symbols."
}

func (searchCodeTool) InputSchema() json.RawMessage {
	return schema(nil, map[string]any{
		"query": map[string]any{"type": "string"},
		"file":  map[string]any{"type": "string"},
	})
}

func (searchCodeTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "query", Required: false, Kind: mcp.ArgString},
		{Name: "file", Required: false, Kind: mcp.ArgString, IsPath: true},
	})
	if err != nil {
		return nil, err
	}
	file := mcp.StringField(fields, "file")
	if file != "" {
		return sess.Planner.DocumentSymbols(ctx, file)
	}
	query := mcp.StringField(fields, "query")
	if query == "" {
		return nil, errs.New(errs.InvalidArgs, "search_code requires either %q or %q", "query", "file")
	}
	return sess.Planner.WorkspaceSymbol(ctx, query)
}
