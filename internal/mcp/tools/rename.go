package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
	"github.com/lexcodex/devbridge/internal/proto"
)

// renameAllTool is the `rename_all` tool of spec §6, dispatching on
// `kind` among "symbol" (LSP textDocument/rename, by position when given
// or by name+kind for a fuzzy fallback), "file", and "directory".
type renameAllTool struct{}

func (renameAllTool) Name() string { return "rename_all" }

func (renameAllTool) Description() string {
	return "Rename a symbol, file, or directory project-wide, updating every reference."
}

func (renameAllTool) InputSchema() json.RawMessage {
	return schema([]string{"kind", "newName"}, map[string]any{
		"kind":       map[string]any{"type": "string", "enum": []string{"symbol", "file", "directory"}},
		"file":       map[string]any{"type": "string"},
		"path":       map[string]any{"type": "string"},
		"position":   map[string]any{"type": "object"},
		"symbolName": map[string]any{"type": "string"},
		"symbolKind": map[string]any{"type": "string"},
		"newName":    map[string]any{"type": "string"},
		"options":    map[string]any{"type": "object"},
	})
}

func (renameAllTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "kind", Required: true, Kind: mcp.ArgString},
		{Name: "newName", Required: true, Kind: mcp.ArgString},
		{Name: "file", Required: false, Kind: mcp.ArgString, IsPath: true},
		{Name: "path", Required: false, Kind: mcp.ArgString, IsPath: true},
		{Name: "position", Required: false, Kind: mcp.ArgObject},
		{Name: "symbolName", Required: false, Kind: mcp.ArgString},
		{Name: "symbolKind", Required: false, Kind: mcp.ArgString},
	})
	if err != nil {
		return nil, err
	}
	kind := mcp.StringField(fields, "kind")
	newName := mcp.StringField(fields, "newName")
	opts := mcp.CommonOptionsField(fields)

	switch kind {
	case "symbol":
		file := mcp.StringField(fields, "file")
		if file == "" {
			return nil, errs.New(errs.InvalidArgs, "rename_all kind=symbol requires %q", "file")
		}
		if _, present := fields["position"]; present {
			pos, err := positionArg(fields, "position")
			if err != nil {
				return nil, err
			}
			p, err := sess.Planner.RenameSymbolStrict(ctx, file, pos, newName)
			if err != nil {
				return nil, err
			}
			return planResult(sess, p, opts)
		}
		symbolName := mcp.StringField(fields, "symbolName")
		if symbolName == "" {
			return nil, errs.New(errs.InvalidArgs, "rename_all kind=symbol requires %q or %q", "position", "symbolName")
		}
		symbolKind := proto.SymbolKind(mcp.StringFieldDefault(fields, "symbolKind", string(proto.SymbolFunction)))
		p, err := sess.Planner.RenameSymbolFuzzy(ctx, file, symbolName, symbolKind, newName)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "file":
		oldPath := mcp.StringField(fields, "path")
		if oldPath == "" {
			return nil, errs.New(errs.InvalidArgs, "rename_all kind=file requires %q", "path")
		}
		p, err := sess.Planner.RenameFile(ctx, oldPath, newName)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "directory":
		oldPath := mcp.StringField(fields, "path")
		if oldPath == "" {
			return nil, errs.New(errs.InvalidArgs, "rename_all kind=directory requires %q", "path")
		}
		p, err := sess.Planner.RenameDirectory(ctx, oldPath, newName)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	default:
		return nil, errs.New(errs.InvalidArgs, "unknown rename_all kind %q", kind).WithDetail("kind", kind)
	}
}
