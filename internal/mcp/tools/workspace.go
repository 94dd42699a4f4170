package tools

import (
	"context"
	"encoding/json"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/mcp"
	"github.com/lexcodex/devbridge/internal/refactor/planner"
)

// workspaceTool is the `workspace` tool of spec §6: the project-wide,
// non-LSP operations that act on manifests and directory trees rather
// than on a single open document — find/replace, package scaffolding,
// dependency extraction, membership edits, and a health-oriented project
// verification pass.
type workspaceTool struct{}

func (workspaceTool) Name() string { return "workspace" }

func (workspaceTool) Description() string {
	return "Project-wide operations: find/replace, create a package, extract dependencies, edit workspace members, or verify project health."
}

func (workspaceTool) InputSchema() json.RawMessage {
	return schema([]string{"action"}, map[string]any{
		"action":            map[string]any{"type": "string", "enum": []string{"find_replace", "create_package", "extract_dependencies", "update_members", "verify_project"}},
		"pattern":           map[string]any{"type": "string"},
		"replacement":       map[string]any{"type": "string"},
		"regex":             map[string]any{"type": "boolean"},
		"wholeWord":         map[string]any{"type": "boolean"},
		"preserveCase":      map[string]any{"type": "boolean"},
		"includeGlobs":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"excludeGlobs":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"workspaceRoot":     map[string]any{"type": "string"},
		"newPackagePath":    map[string]any{"type": "string"},
		"packageKind":       map[string]any{"type": "string"},
		"manifestExt":       map[string]any{"type": "string"},
		"sourceManifest":    map[string]any{"type": "string"},
		"destManifest":      map[string]any{"type": "string"},
		"dependencyNames":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"manifestPath":      map[string]any{"type": "string"},
		"addMembers":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"removeMembers":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"options":           map[string]any{"type": "object"},
	})
}

func (workspaceTool) Handle(ctx context.Context, sess *mcp.Session, args json.RawMessage) (any, error) {
	fields, err := mcp.ValidateArgs(args, []mcp.ArgSpec{
		{Name: "action", Required: true, Kind: mcp.ArgString},
	})
	if err != nil {
		return nil, err
	}
	action := mcp.StringField(fields, "action")
	opts := mcp.CommonOptionsField(fields)

	switch action {
	case "find_replace":
		pattern := mcp.StringField(fields, "pattern")
		replacement := mcp.StringField(fields, "replacement")
		if pattern == "" {
			return nil, errs.New(errs.InvalidArgs, "workspace action=find_replace requires %q", "pattern")
		}
		p, err := sess.Planner.FindReplace(ctx, pattern, replacement, planner.FindReplaceOptions{
			Regex:        mcp.BoolFieldDefault(fields, "regex", false),
			WholeWord:    mcp.BoolFieldDefault(fields, "wholeWord", false),
			PreserveCase: mcp.BoolFieldDefault(fields, "preserveCase", false),
			IncludeGlobs: mcp.StringSliceField(fields, "includeGlobs"),
			ExcludeGlobs: mcp.StringSliceField(fields, "excludeGlobs"),
		})
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "create_package":
		workspaceRoot := mcp.StringField(fields, "workspaceRoot")
		newPath := mcp.StringField(fields, "newPackagePath")
		if workspaceRoot == "" || newPath == "" {
			return nil, errs.New(errs.InvalidArgs, "workspace action=create_package requires %q and %q", "workspaceRoot", "newPackagePath")
		}
		p, err := sess.Planner.CreatePackage(ctx, workspaceRoot, newPath,
			mcp.StringFieldDefault(fields, "packageKind", "library"),
			mcp.StringFieldDefault(fields, "manifestExt", ""))
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "extract_dependencies":
		src := mcp.StringField(fields, "sourceManifest")
		dst := mcp.StringField(fields, "destManifest")
		if src == "" || dst == "" {
			return nil, errs.New(errs.InvalidArgs, "workspace action=extract_dependencies requires %q and %q", "sourceManifest", "destManifest")
		}
		p, err := sess.Planner.ExtractDependencies(ctx, src, dst, mcp.StringSliceField(fields, "dependencyNames"))
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "update_members":
		manifest := mcp.StringField(fields, "manifestPath")
		if manifest == "" {
			return nil, errs.New(errs.InvalidArgs, "workspace action=update_members requires %q", "manifestPath")
		}
		p, err := sess.Planner.UpdateMembers(ctx, manifest, mcp.StringSliceField(fields, "addMembers"), mcp.StringSliceField(fields, "removeMembers"))
		if err != nil {
			return nil, err
		}
		return planResult(sess, p, opts)
	case "verify_project":
		return verifyProject(sess), nil
	default:
		return nil, errs.New(errs.InvalidArgs, "unknown workspace action %q", action).WithDetail("action", action)
	}
}

// verifyProjectResult summarizes whether the project's language-server
// fleet is healthy enough for refactoring tools to be trusted.
type verifyProjectResult struct {
	Healthy   bool              `json:"healthy"`
	Languages []languageHealth  `json:"languages"`
	Extensions map[string]string `json:"registeredExtensions,omitempty"`
}

type languageHealth struct {
	Language string `json:"language"`
	State    string `json:"state"`
	Problem  string `json:"problem,omitempty"`
}

// verifyProject has no dedicated planner backing of its own; it composes
// two already-built read-only views, the LSP pool's health table and the
// plugin registry's extension-to-plugin table, rather than inventing a new
// refactor.Plan-shaped operation for a check that mutates nothing.
func verifyProject(sess *mcp.Session) verifyProjectResult {
	entries := sess.Pool.Describe()
	result := verifyProjectResult{Healthy: true}
	for _, e := range entries {
		lh := languageHealth{Language: e.Language, State: e.State}
		if e.State != "Ready" {
			result.Healthy = false
			lh.Problem = "language server is not in the Ready state"
		}
		result.Languages = append(result.Languages, lh)
	}
	if sess.Registry != nil {
		result.Extensions = make(map[string]string)
		for _, ext := range sess.Registry.Extensions() {
			if p, ok := sess.Registry.Lookup(ext); ok {
				result.Extensions[ext] = p.Name()
			}
		}
	}
	return result
}
