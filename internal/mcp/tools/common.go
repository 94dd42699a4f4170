// Package tools implements the curated MCP tool surface of spec §6:
// inspect_code, search_code, rename_all, relocate, prune, refactor,
// workspace, and health_check. Each tool is a thin mcp.Tool adapter over
// the already-built internal/refactor/planner family, responsible only
// for argument validation and the unified dry-run contract (spec §4.7).
package tools

import (
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
)

// Register adds every curated tool to reg, the set the dispatcher's
// tools/list and tools/call answer against.
func Register(reg *mcp.Registry) {
	reg.Register(inspectCodeTool{})
	reg.Register(searchCodeTool{})
	reg.Register(renameAllTool{})
	reg.Register(relocateTool{})
	reg.Register(pruneTool{})
	reg.Register(refactorTool{})
	reg.Register(workspaceTool{})
	reg.Register(healthCheckTool{})
}

// planResult renders a plan per the unified dry-run contract: dryRun
// true returns the plan's wire rendering; dryRun false calls the
// executor and returns its ApplyResult (spec §4.7 "Unified dry-run
// contract" — there is no separate apply-this-plan tool).
func planResult(sess *mcp.Session, plan *refactor.Plan, opts mcp.CommonOptions) (any, error) {
	if opts.DryRun {
		return plan.Render(), nil
	}
	result, err := sess.Executor.Apply(plan, refactor.Options{
		DryRun:            false,
		ValidateChecksums: opts.ValidateChecksums,
		CreateBackup:      opts.CreateBackup,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// positionArg decodes a required {line, character} argument into a
// proto.Position, or InvalidArgs if it's missing or malformed.
func positionArg(fields map[string]any, name string) (proto.Position, error) {
	line, character, ok := mcp.PositionField(fields, name)
	if !ok {
		return proto.Position{}, errs.New(errs.InvalidArgs, "missing or malformed %q position argument", name).
			WithDetail("argument", name)
	}
	return proto.Position{Line: line, Character: character}, nil
}

// rangeArg decodes a required {start:{line,character}, end:{line,character}}
// argument into a proto.Range.
func rangeArg(fields map[string]any, name string) (proto.Range, error) {
	raw, ok := fields[name].(map[string]any)
	if !ok {
		return proto.Range{}, errs.New(errs.InvalidArgs, "missing or malformed %q range argument", name).
			WithDetail("argument", name)
	}
	startLine, startChar, startOK := mcp.PositionField(raw, "start")
	endLine, endChar, endOK := mcp.PositionField(raw, "end")
	if !startOK {
		return proto.Range{}, errs.New(errs.InvalidArgs, "malformed %q.start", name)
	}
	if !endOK {
		return proto.Range{}, errs.New(errs.InvalidArgs, "malformed %q.end", name)
	}
	return proto.Range{
		Start: proto.Position{Line: startLine, Character: startChar},
		End:   proto.Position{Line: endLine, Character: endChar},
	}, nil
}

// schema returns a minimal JSON-schema object literal, just enough for
// tools/list to advertise required fields; devbridge's own handlers are
// the actual source of truth for validation.
func schema(required []string, properties map[string]any) json.RawMessage {
	obj := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	body, _ := json.Marshal(obj)
	return body
}
