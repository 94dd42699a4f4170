package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
)

// pruneTool is the `prune` tool of spec §6: delete a symbol or a whole
// file, surfacing any leftover references rather than guessing at an
// edit for them.
type pruneTool struct{}

func (pruneTool) Name() string { return "prune" }

func (pruneTool) Description() string {
	return "Delete a symbol or a file, warning about any references left behind."
}

func (pruneTool) InputSchema() json.RawMessage {
	return schema([]string{"kind", "file"}, map[string]any{
		"kind":     map[string]any{"type": "string", "enum": []string{"symbol", "file"}},
		"file":     map[string]any{"type": "string"},
		"position": map[string]any{"type": "object"},
		"options":  map[string]any{"type": "object"},
	})
}

func (pruneTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "kind", Required: true, Kind: mcp.ArgString},
		{Name: "file", Required: true, Kind: mcp.ArgString, IsPath: true},
		{Name: "position", Required: false, Kind: mcp.ArgObject},
	})
	if err != nil {
		return nil, err
	}
	kind := mcp.StringField(fields, "kind")
	file := mcp.StringField(fields, "file")
	opts := mcp.CommonOptionsField(fields)

	switch kind {
	case "symbol":
		pos, err := positionArg(fields, "position")
		if err != nil {
			return nil, err
		}
		p, err := sess.Planner.DeleteSymbol(ctx, file, pos)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "file":
		p, err := sess.Planner.DeleteFile(ctx, file)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	default:
		return nil, errs.New(errs.InvalidArgs, "unknown prune kind %q", kind).WithDetail("kind", kind)
	}
}
