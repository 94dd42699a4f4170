package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
)

// refactorTool is the `refactor` tool of spec §6: the LSP code-action
// family (extract, inline, reorder, transform), dispatched on `action`.
type refactorTool struct{}

func (refactorTool) Name() string { return "refactor" }

func (refactorTool) Description() string {
	return "Apply a code-action style refactor: extract, inline, reorder members, or a named transform."
}

func (refactorTool) InputSchema() json.RawMessage {
	return schema([]string{"action", "file"}, map[string]any{
		"action":         map[string]any{"type": "string", "enum": []string{"extract", "inline", "reorder", "transform"}},
		"file":           map[string]any{"type": "string"},
		"range":          map[string]any{"type": "object"},
		"position":       map[string]any{"type": "object"},
		"newName":        map[string]any{"type": "string"},
		"codeActionKind": map[string]any{"type": "string"},
		"order":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"options":        map[string]any{"type": "object"},
	})
}

func (refactorTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "action", Required: true, Kind: mcp.ArgString},
		{Name: "file", Required: true, Kind: mcp.ArgString, IsPath: true},
		{Name: "range", Required: false, Kind: mcp.ArgObject},
		{Name: "position", Required: false, Kind: mcp.ArgObject},
		{Name: "newName", Required: false, Kind: mcp.ArgString},
		{Name: "codeActionKind", Required: false, Kind: mcp.ArgString},
		{Name: "order", Required: false, Kind: mcp.ArgArray},
	})
	if err != nil {
		return nil, err
	}
	action := mcp.StringField(fields, "action")
	file := mcp.StringField(fields, "file")
	opts := mcp.CommonOptionsField(fields)

	switch action {
	case "extract":
		rng, err := rangeArg(fields, "range")
		if err != nil {
			return nil, err
		}
		newName := mcp.StringField(fields, "newName")
		if newName == "" {
			return nil, errs.New(errs.InvalidArgs, "refactor action=extract requires %q", "newName")
		}
		p, err := sess.Planner.Extract(ctx, file, rng, newName)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "inline":
		pos, err := positionArg(fields, "position")
		if err != nil {
			return nil, err
		}
		p, err := sess.Planner.Inline(ctx, file, pos)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "transform":
		rng, err := rangeArg(fields, "range")
		if err != nil {
			return nil, err
		}
		codeActionKind := mcp.StringField(fields, "codeActionKind")
		if codeActionKind == "" {
			return nil, errs.New(errs.InvalidArgs, "refactor action=transform requires %q", "codeActionKind")
		}
		p, err := sess.Planner.Transform(ctx, file, rng, codeActionKind)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "reorder":
		order := mcp.StringSliceField(fields, "order")
		if len(order) == 0 {
			return nil, errs.New(errs.InvalidArgs, "refactor action=reorder requires a non-empty %q", "order")
		}
		p, err := sess.Planner.Reorder(ctx, file, order)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	default:
		return nil, errs.New(errs.InvalidArgs, "unknown refactor action %q", action).WithDetail("action", action)
	}
}
