package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
)

// relocateTool is the `relocate` tool of spec §6: move a symbol to
// another file, or move a file/directory to another path, updating every
// reference either way. Distinct from rename_all because a relocation
// always names a destination location rather than a new name in place.
type relocateTool struct{}

func (relocateTool) Name() string { return "relocate" }

func (relocateTool) Description() string {
	return "Move a symbol into another file, or move a file/directory to a new path, fixing up references."
}

func (relocateTool) InputSchema() json.RawMessage {
	return schema([]string{"kind", "destination"}, map[string]any{
		"kind":        map[string]any{"type": "string", "enum": []string{"symbol", "file", "directory"}},
		"source":      map[string]any{"type": "string"},
		"position":    map[string]any{"type": "object"},
		"destination": map[string]any{"type": "string"},
		"options":     map[string]any{"type": "object"},
	})
}

func (relocateTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "kind", Required: true, Kind: mcp.ArgString},
		{Name: "destination", Required: true, Kind: mcp.ArgString, IsPath: true},
		{Name: "source", Required: false, Kind: mcp.ArgString, IsPath: true},
		{Name: "position", Required: false, Kind: mcp.ArgObject},
	})
	if err != nil {
		return nil, err
	}
	kind := mcp.StringField(fields, "kind")
	destination := mcp.StringField(fields, "destination")
	source := mcp.StringField(fields, "source")
	opts := mcp.CommonOptionsField(fields)

	switch kind {
	case "symbol":
		if source == "" {
			return nil, errs.New(errs.InvalidArgs, "relocate kind=symbol requires %q", "source")
		}
		pos, err := positionArg(fields, "position")
		if err != nil {
			return nil, err
		}
		p, err := sess.Planner.MoveSymbol(ctx, source, pos, destination)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "file":
		if source == "" {
			return nil, errs.New(errs.InvalidArgs, "relocate kind=file requires %q", "source")
		}
		p, err := sess.Planner.RenameFile(ctx, source, destination)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "directory":
		if source == "" {
			return nil, errs.New(errs.InvalidArgs, "relocate kind=directory requires %q", "source")
		}
		p, err := sess.Planner.RenameDirectory(ctx, source, destination)
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	default:
		return nil, errs.New(errs.InvalidArgs, "unknown relocate kind %q", kind).WithDetail("kind", kind)
	}
}
