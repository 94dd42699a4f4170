package planner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
	lsp "go.lsp.dev/protocol"
)

// absorbWorkspaceEdit merges a wire-level LSP WorkspaceEdit into plan,
// recording a pre-image checksum for every URI it touches (spec §3).
func (c *Context) absorbWorkspaceEdit(plan *refactor.Plan, wsEdit lsp.WorkspaceEdit) error {
	for uri, edits := range wsEdit.Changes {
		path, err := pathutil.FromURI(string(uri))
		if err != nil {
			return errs.Wrap(errs.InternalError, err, "resolve %s", uri)
		}
		resolved, err := c.Resolver.Resolve(path)
		if err != nil {
			return err
		}
		_, ownURI, err := c.readAndChecksum(plan, resolved)
		if err != nil {
			return err
		}
		for _, e := range edits {
			plan.Edit.AddEdit(ownURI, proto.TextEdit{Range: e.Range, NewText: e.NewText})
		}
	}
	return nil
}

func renameCapCheck(caps lsp.ServerCapabilities) bool { return caps.RenameProvider != nil }

// RenameSymbolStrict renames the symbol at (file, position) across the
// workspace using textDocument/rename, doing the prepareRename dance
// first when the server advertises PrepareSupport (spec §4.5.1 "Symbol
// rename").
func (c *Context) RenameSymbolStrict(ctx context.Context, file string, pos proto.Position, newName string) (*refactor.Plan, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	caps := sup.Capabilities()
	if renameCapCheck(caps) {
		if opts, ok := caps.RenameProvider.(map[string]any); ok && opts["prepareProvider"] == true {
			var prepResult any
			prepParams := lsp.PrepareRenameParams{
				TextDocumentPositionParams: lsp.TextDocumentPositionParams{
					TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
					Position:     pos,
				},
			}
			if err := sup.Call(ctx, "textDocument/prepareRename", renameCapCheck, "prepareRename", prepParams, &prepResult); err != nil {
				return nil, err
			}
		}
	}

	params := lsp.RenameParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
			Position:     pos,
		},
		NewName: newName,
	}
	var result lsp.WorkspaceEdit
	if err := sup.Call(ctx, "textDocument/rename", renameCapCheck, "rename", params, &result); err != nil {
		return nil, err
	}

	plan := refactor.New(refactor.PlanRename)
	plan.Metadata["targetFile"] = path
	plan.Metadata["newName"] = newName
	if err := c.absorbWorkspaceEdit(plan, result); err != nil {
		return nil, err
	}
	return plan, nil
}

// RenameSymbolFuzzy resolves (file, symbolName, kind?) to a single
// position via the plugin's symbol extractor, then delegates to
// RenameSymbolStrict. Multiple matches surviving the optional kind
// filter produce AmbiguousTarget rather than a guess (spec §4.5.1).
func (c *Context) RenameSymbolFuzzy(ctx context.Context, file, symbolName string, kind proto.SymbolKind, newName string) (*refactor.Plan, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	uri := proto.URI(pathutil.ToURI(path))
	content, err := readFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "read %s", path)
	}

	parser, err := requireCapability[plugin.SymbolParser](c.Registry, extOf(path), plugin.CapSymbolParser, uri)
	if err != nil {
		return nil, err
	}
	symbols, err := parser.ParseSymbols(ctx, content, uri)
	if err != nil {
		return nil, wrapPluginErr(err, "parse symbols", path)
	}

	var candidates []proto.Symbol
	for _, s := range symbols {
		if s.Name != symbolName {
			continue
		}
		if kind != "" && s.Kind != kind {
			continue
		}
		candidates = append(candidates, s)
	}
	switch len(candidates) {
	case 0:
		return nil, errs.New(errs.InvalidArgs, "no symbol named %q found in %s", symbolName, path)
	case 1:
		return c.RenameSymbolStrict(ctx, file, candidates[0].Range.Start, newName)
	default:
		return nil, errs.New(errs.AmbiguousTarget, "%d symbols named %q in %s", len(candidates), symbolName, path).WithDetail("candidates", candidates)
	}
}

// RenameFile renames a single file, rewriting every importer whose
// extension has a FileReferenceRewriter plugin (spec §4.5.1 "File
// rename / move").
func (c *Context) RenameFile(ctx context.Context, oldPath, newPath string) (*refactor.Plan, error) {
	oldAbs, err := c.Resolver.Resolve(oldPath)
	if err != nil {
		return nil, err
	}
	newAbs, err := c.Resolver.Resolve(newPath)
	if err != nil {
		return nil, err
	}
	if _, err := readFile(oldAbs); err != nil {
		return nil, errs.New(errs.InvalidArgs, "rename source %s does not exist", oldPath)
	}
	if _, err := readFile(newAbs); err == nil {
		return nil, errs.New(errs.InvalidArgs, "rename destination %s already exists", newPath)
	}

	plan := refactor.New(refactor.PlanRename)
	oldURI := proto.URI(pathutil.ToURI(oldAbs))
	newURI := proto.URI(pathutil.ToURI(newAbs))

	if err := c.rewriteImportersOfFile(ctx, plan, oldAbs, oldURI, newAbs, newURI); err != nil {
		return nil, err
	}

	plan.Edit.AddFileOp(proto.FileOp{Kind: proto.FileOpRename, OldURI: oldURI, NewURI: newURI})

	if extOf(oldAbs) != extOf(newAbs) {
		plan.Warn("CrossLanguageRename", fmt.Sprintf("renaming %s to %s crosses a language extension boundary", oldPath, newPath), nil)
	}
	return plan, nil
}

// rewriteImportersOfFile walks the project for every file whose plugin
// supports RewriteFileReferences, accumulating edits that retarget
// imports of oldURI to newURI.
func (c *Context) rewriteImportersOfFile(ctx context.Context, plan *refactor.Plan, oldAbs string, oldURI proto.URI, newAbs string, newURI proto.URI) error {
	return c.Scanner.Walk(func(path string) error {
		ext := extOf(path)
		rewriter, err := requireCapability[plugin.FileReferenceRewriter](c.Registry, ext, plugin.CapFileReferenceRewriter, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil // extension has no rewriter plugin; not every file is an importer
		}
		content, err := readFile(path)
		if err != nil {
			return errs.Wrap(errs.InvalidArgs, err, "read %s", path)
		}
		edits, err := rewriter.RewriteFileReferences(ctx, content, oldURI, newURI, path)
		if err != nil {
			return wrapPluginErr(err, "rewrite file references in", path)
		}
		if len(edits) == 0 {
			return nil
		}
		_, uri, err := c.readAndChecksum(plan, path)
		if err != nil {
			return err
		}
		for _, e := range edits {
			plan.Edit.AddEdit(uri, e)
		}
		return nil
	})
}

// RenameDirectory recursively renames every file under oldDir to the
// corresponding path under newDir, merging per-file edit maps and
// appending a single directory-rename file-op (spec §4.5.1 "Directory
// rename"). Per-contained-file plans are generated against each file's
// own new path rather than a directory-level string substitution: a
// rewrite derived from `from './core'` does not match `from
// './core/api'`, so only per-file matching is correct.
func (c *Context) RenameDirectory(ctx context.Context, oldDir, newDir string) (*refactor.Plan, error) {
	oldDirAbs, err := c.Resolver.Resolve(oldDir)
	if err != nil {
		return nil, err
	}
	newDirAbs, err := c.Resolver.Resolve(newDir)
	if err != nil {
		return nil, err
	}

	plan := refactor.New(refactor.PlanRename)
	plan.Metadata["directoryRename"] = true

	var files []string
	if err := c.Scanner.Walk(func(path string) error {
		if strings.HasPrefix(path, oldDirAbs+string(filepath.Separator)) {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Strings(files)

	for _, oldAbs := range files {
		rel, err := filepath.Rel(oldDirAbs, oldAbs)
		if err != nil {
			return nil, err
		}
		newAbs := filepath.Join(newDirAbs, rel)
		oldURI := proto.URI(pathutil.ToURI(oldAbs))
		newURI := proto.URI(pathutil.ToURI(newAbs))

		if err := c.rewriteImportersOfFile(ctx, plan, oldAbs, oldURI, newAbs, newURI); err != nil {
			return nil, err
		}
		plan.Edit.AddFileOp(proto.FileOp{Kind: proto.FileOpRename, OldURI: oldURI, NewURI: newURI})
	}

	plan.Edit.AddFileOp(proto.FileOp{
		Kind:   proto.FileOpMoveDir,
		OldURI: proto.URI(pathutil.ToURI(oldDirAbs)),
		NewURI: proto.URI(pathutil.ToURI(newDirAbs)),
	})
	return plan, nil
}

// ConsolidatePackage handles the package-root-into-another-package-tree
// case (spec §4.5.1 "Consolidation"): marks the plan as a consolidation,
// rewrites module-qualified references via the plugin's
// RewriteModuleReferences, and leaves manifest-merge guidance as
// warnings rather than editing the destination manifest directly.
func (c *Context) ConsolidatePackage(ctx context.Context, sourceRoot, destRoot, oldModule, newModule string) (*refactor.Plan, error) {
	plan, err := c.RenameDirectory(ctx, sourceRoot, destRoot)
	if err != nil {
		return nil, err
	}
	plan.Metadata["is_consolidation"] = true
	plan.Metadata["oldModule"] = oldModule
	plan.Metadata["newModule"] = newModule

	if err := c.Scanner.Walk(func(path string) error {
		ext := extOf(path)
		rewriter, err := requireCapability[plugin.ModuleReferenceRewriter](c.Registry, ext, plugin.CapModuleReferenceRewriter, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		content, err := readFile(path)
		if err != nil {
			return errs.Wrap(errs.InvalidArgs, err, "read %s", path)
		}
		edits, err := rewriter.RewriteModuleReferences(ctx, content, oldModule, newModule)
		if err != nil {
			return wrapPluginErr(err, "rewrite module references in", path)
		}
		if len(edits) == 0 {
			return nil
		}
		_, uri, err := c.readAndChecksum(plan, path)
		if err != nil {
			return err
		}
		for _, e := range edits {
			plan.Edit.AddEdit(uri, e)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	plan.Warn("ManifestMergeRequired",
		fmt.Sprintf("consolidating %s into %s may require manually absorbing its manifest dependencies and shrinking the workspace member list", sourceRoot, destRoot),
		map[string]any{"sourceRoot": sourceRoot, "destRoot": destRoot})
	return plan, nil
}
