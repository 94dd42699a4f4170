package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
)

// inspectCodeTool is the `inspect_code` tool of spec §6: a read-only
// multiplexer over definition/references/hover/diagnostics/documentSymbols,
// selected by the `query` argument rather than one tool per LSP request
// kind, since all five share the same file(+position) shape.
type inspectCodeTool struct{}

func (inspectCodeTool) Name() string { return "inspect_code" }

func (inspectCodeTool) Description() string {
	return "Inspect a source location: definition, references, hover, diagnostics, or document symbols."
}

func (inspectCodeTool) InputSchema() json.RawMessage {
	return schema([]string{"file", "query"}, map[string]any{
		"file":               map[string]any{"type": "string"},
		"query":              map[string]any{"type": "string", "enum": []string{"definition", "references", "hover", "diagnostics", "symbols"}},
		"position":           map[string]any{"type": "object"},
		"includeDeclaration": map[string]any{"type": "boolean"},
	})
}

func (inspectCodeTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "file", Required: true, Kind: mcp.ArgString, IsPath: true},
		{Name: "query", Required: true, Kind: mcp.ArgString},
		{Name: "position", Required: false, Kind: mcp.ArgObject},
		{Name: "includeDeclaration", Required: false, Kind: mcp.ArgBool},
	})
	if err != nil {
		return nil, err
	}
	file := mcp.StringField(fields, "file")
	query := mcp.StringField(fields, "query")

	switch query {
	case "definition":
		pos, err := positionArg(fields, "position")
		if err != nil {
			return nil, err
		}
		return sess.Planner.Definition(ctx, file, pos)
	case "references":
		pos, err := positionArg(fields, "position")
		if err != nil {
			return nil, err
		}
		includeDecl := mcp.BoolFieldDefault(fields, "includeDeclaration", true)
		return sess.Planner.References(ctx, file, pos, includeDecl)
	case "hover":
		pos, err := positionArg(fields, "position")
		if err != nil {
			return nil, err
		}
		return sess.Planner.Hover(ctx, file, pos)
	case "diagnostics":
		return sess.Planner.Diagnostics(ctx, file)
	case "symbols":
		return sess.Planner.DocumentSymbols(ctx, file)
	default:
		return nil, errs.New(errs.InvalidArgs, "unknown inspect_code query %q", query).WithDetail("query", query)
	}
}
