package planner

import (
	"context"

	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
)

// DeleteFile is the `prune` tool's file-scoped mode: delete path
// outright, then warn about every other project file whose import
// analysis still references it (spec §6 `prune`: "dead-import and
// dead-file pruning"). Import statements are not auto-rewritten here,
// unlike RenameFile's FileReferenceRewriter pass: a deletion has no
// target URI to retarget the import to, so the correct edit depends on
// the importing language's own conventions for an unused import (a
// feature the plugin capability set does not yet expose) — the plan
// instead surfaces each affected importer as a warning for the caller to
// resolve, rather than guessing at a text edit that might not compile.
func (c *Context) DeleteFile(ctx context.Context, path string) (*refactor.Plan, error) {
	abs, err := c.Resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	plan := refactor.New(refactor.PlanDelete)
	content, uri, err := c.readAndChecksum(plan, abs)
	if err != nil {
		return nil, err
	}
	plan.Metadata["deletedPath"] = path
	plan.Edit.AddFileOp(proto.FileOp{Kind: proto.FileOpDelete, OldURI: uri})

	ext := extOf(abs)
	if _, capErr := requireCapability[plugin.ImportAnalyzer](c.Registry, ext, plugin.CapImportAnalyzer, uri); capErr != nil {
		return plan, nil // no import analysis for this extension; nothing more to warn about
	}
	_ = content

	importers, err := c.findImportersOf(ctx, abs)
	if err != nil {
		return nil, err
	}
	if len(importers) > 0 {
		plan.Warn("DeadImportsRemain", "deleting this file leaves imports of it behind", map[string]any{"importers": importers})
	}
	return plan, nil
}

// findImportersOf walks the project looking for files whose own import
// analysis names target, reusing each file's own plugin rather than
// requiring every language to share one import-resolution strategy.
func (c *Context) findImportersOf(ctx context.Context, target string) ([]string, error) {
	targetURI := proto.URI(pathutil.ToURI(target))
	var out []string
	err := c.Scanner.Walk(func(path string) error {
		if path == target {
			return nil
		}
		ext := extOf(path)
		calc, err := requireCapability[plugin.RelativeImportCalculator](c.Registry, ext, plugin.CapRelativeImportCalculator, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		expected, err := calc.CalculateRelativeImport(path, target)
		if err != nil {
			return nil
		}
		analyzer, err := requireCapability[plugin.ImportAnalyzer](c.Registry, ext, plugin.CapImportAnalyzer, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		content, err := readFile(path)
		if err != nil {
			return nil
		}
		imports, err := analyzer.AnalyzeImports(ctx, content, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		for _, imp := range imports {
			if imp.ModulePath == expected || imp.ModulePath == string(targetURI) {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	return out, err
}
