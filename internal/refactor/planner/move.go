package planner

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
	lsp "go.lsp.dev/protocol"
)

// MoveSymbol relocates the declaration at (sourceFile, pos) into destFile
// (spec §4.5.2). textDocument/definition resolves pos onto the symbol's
// canonical declaration and textDocument/documentSymbol finds that
// declaration's full enclosing range; the lines spanning that range are
// detached from the source and appended to the destination. The plugin's
// ImportAnalyzer and RelativeImportCalculator carry across whatever
// imports the extracted block depends on, dropping them from the source
// once nothing else there still references them, and every other project
// file that imported the symbol by name from its old location is
// retargeted at the destination via FileReferenceRewriter.
func (c *Context) MoveSymbol(ctx context.Context, sourceFile string, pos proto.Position, destFile string) (*refactor.Plan, error) {
	dstAbs, err := c.Resolver.Resolve(destFile)
	if err != nil {
		return nil, err
	}

	locs, err := c.Definition(ctx, sourceFile, pos)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, errs.New(errs.InvalidArgs, "no definition found at the given position in %s", sourceFile)
	}
	declPath, err := pathutil.FromURI(string(locs[0].URI))
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "resolve definition uri %s", locs[0].URI)
	}
	srcAbs, err := c.Resolver.Resolve(declPath)
	if err != nil {
		return nil, err
	}
	if srcAbs == dstAbs {
		return nil, errs.New(errs.InvalidArgs, "source and destination are the same file")
	}

	docSyms, err := c.DocumentSymbols(ctx, srcAbs)
	if err != nil {
		return nil, err
	}
	name, rng, ok := findEnclosingSymbol(docSyms, locs[0].Range.Start)
	if !ok {
		return nil, errs.New(errs.InvalidArgs, "no enclosing declaration found at the given position in %s", sourceFile)
	}

	srcContent, err := readFile(srcAbs)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "read %s", srcAbs)
	}
	dstContent, err := readFile(dstAbs)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "read %s", destFile)
	}

	srcLines := strings.Split(string(srcContent), "\n")
	endLine := int(rng.End.Line)
	if endLine >= len(srcLines) {
		endLine = len(srcLines) - 1
	}
	startLine := int(rng.Start.Line)
	if startLine > endLine {
		startLine = endLine
	}
	extracted := strings.Join(srcLines[startLine:endLine+1], "\n")
	remainingSrc := strings.Join(append(append([]string{}, srcLines[:startLine]...), srcLines[endLine+1:]...), "\n")

	plan := refactor.New(refactor.PlanMove)
	plan.Metadata["symbol"] = name
	plan.Metadata["sourceFile"] = declPath
	plan.Metadata["destFile"] = destFile

	_, srcURI, err := c.readAndChecksum(plan, srcAbs)
	if err != nil {
		return nil, err
	}
	plan.Edit.AddEdit(srcURI, proto.TextEdit{
		Range: proto.Range{
			Start: proto.Position{Line: uint32(startLine), Character: 0},
			End:   proto.Position{Line: uint32(endLine) + 1, Character: 0},
		},
		NewText: "",
	})

	_, dstURI, err := c.readAndChecksum(plan, dstAbs)
	if err != nil {
		return nil, err
	}
	dstLines := strings.Split(string(dstContent), "\n")
	lastLine := uint32(len(dstLines) - 1)
	lastCol := uint32(len([]rune(dstLines[len(dstLines)-1])))
	plan.Edit.AddEdit(dstURI, proto.TextEdit{
		Range: proto.Range{
			Start: proto.Position{Line: lastLine, Character: lastCol},
			End:   proto.Position{Line: lastLine, Character: lastCol},
		},
		NewText: "\n\n" + extracted,
	})

	c.carrySymbolImports(ctx, plan, srcAbs, srcURI, dstAbs, dstURI, extracted, remainingSrc)

	if err := c.retargetSymbolImporters(ctx, plan, srcAbs, dstAbs, name); err != nil {
		return nil, err
	}

	return plan, nil
}

// findEnclosingSymbol walks the document symbol tree for the narrowest
// symbol whose range contains pos, descending into children first so a
// nested declaration wins over its enclosing one.
func findEnclosingSymbol(syms []lsp.DocumentSymbol, pos proto.Position) (string, proto.Range, bool) {
	for _, s := range syms {
		if !positionInRange(pos, s.Range) {
			continue
		}
		if name, rng, ok := findEnclosingSymbol(s.Children, pos); ok {
			return name, rng, ok
		}
		return s.Name, s.Range, true
	}
	return "", proto.Range{}, false
}

func positionInRange(pos proto.Position, r proto.Range) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}

// carrySymbolImports moves across whatever imports of srcAbs the extracted
// block actually references: each is added to dstAbs (unless already
// present there) via the plugin's RelativeImportCalculator for relative
// specifiers, and dropped from srcAbs once the remaining source text no
// longer mentions any name the import bound. Neither capability being
// available on this extension is not an error; languages with no import
// syntax simply carry nothing across.
func (c *Context) carrySymbolImports(ctx context.Context, plan *refactor.Plan, srcAbs string, srcURI proto.URI, dstAbs string, dstURI proto.URI, extracted, remainingSrc string) {
	ext := extOf(srcAbs)
	analyzer, err := requireCapability[plugin.ImportAnalyzer](c.Registry, ext, plugin.CapImportAnalyzer, srcURI)
	if err != nil {
		return
	}
	srcContent, err := readFile(srcAbs)
	if err != nil {
		return
	}
	srcImports, err := analyzer.AnalyzeImports(ctx, srcContent, srcURI)
	if err != nil {
		return
	}

	dstContent, err := readFile(dstAbs)
	if err != nil {
		return
	}
	var dstImports []proto.Import
	if dstAnalyzer, dstErr := requireCapability[plugin.ImportAnalyzer](c.Registry, extOf(dstAbs), plugin.CapImportAnalyzer, dstURI); dstErr == nil {
		dstImports, _ = dstAnalyzer.AnalyzeImports(ctx, dstContent, dstURI)
	}
	calc, calcErr := requireCapability[plugin.RelativeImportCalculator](c.Registry, ext, plugin.CapRelativeImportCalculator, srcURI)

	srcLines := strings.Split(string(srcContent), "\n")
	var additions []string
	for _, imp := range srcImports {
		if !importBoundNameUsedIn(imp, extracted) {
			continue
		}
		if int(imp.Range.Start.Line) >= len(srcLines) {
			continue
		}
		if !importBoundNameUsedIn(imp, remainingSrc) {
			// no longer needed at the source
			plan.Edit.AddEdit(srcURI, proto.TextEdit{Range: imp.Range, NewText: ""})
		}
		if importAlreadyPresent(dstImports, imp) {
			continue
		}
		line := srcLines[imp.Range.Start.Line]
		if calcErr == nil && strings.HasPrefix(imp.ModulePath, ".") {
			targetAbs := filepath.Join(filepath.Dir(srcAbs), filepath.FromSlash(imp.ModulePath))
			if newSpec, specErr := calc.CalculateRelativeImport(dstAbs, targetAbs); specErr == nil {
				line = strings.Replace(line, imp.ModulePath, newSpec, 1)
			}
		}
		additions = append(additions, line)
	}
	if len(additions) == 0 {
		return
	}
	plan.Edit.AddEdit(dstURI, proto.TextEdit{
		Range:   proto.Range{Start: proto.Position{Line: 0, Character: 0}, End: proto.Position{Line: 0, Character: 0}},
		NewText: strings.Join(additions, "\n") + "\n",
	})
}

func importBoundNameUsedIn(imp proto.Import, text string) bool {
	names := append([]string{}, imp.NamedImports...)
	if imp.DefaultImport != "" {
		names = append(names, imp.DefaultImport)
	}
	if imp.NamespaceImport != "" {
		names = append(names, imp.NamespaceImport)
	}
	if len(names) == 0 {
		// Bare side-effect import, or a Go import with no bound local
		// name to search for: assume both sides might still need it.
		return true
	}
	for _, n := range names {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func importAlreadyPresent(existing []proto.Import, imp proto.Import) bool {
	for _, e := range existing {
		if e.ModulePath == imp.ModulePath {
			return true
		}
		for _, n := range imp.NamedImports {
			for _, en := range e.NamedImports {
				if n == en {
					return true
				}
			}
		}
	}
	return false
}

// retargetSymbolImporters walks the project for files that import symbol
// by name from srcAbs and rewrites their specifier to point at dstAbs
// instead, reusing the same FileReferenceRewriter plugin trait
// rewriteImportersOfFile uses for whole-file moves (see rename.go), gated
// here on the import actually naming the moved symbol so unrelated
// imports of whatever remains in the source file are left untouched.
func (c *Context) retargetSymbolImporters(ctx context.Context, plan *refactor.Plan, srcAbs, dstAbs, symbol string) error {
	srcURI := proto.URI(pathutil.ToURI(srcAbs))
	dstURI := proto.URI(pathutil.ToURI(dstAbs))
	return c.Scanner.Walk(func(path string) error {
		if path == srcAbs || path == dstAbs {
			return nil
		}
		ext := extOf(path)
		analyzer, err := requireCapability[plugin.ImportAnalyzer](c.Registry, ext, plugin.CapImportAnalyzer, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		calc, err := requireCapability[plugin.RelativeImportCalculator](c.Registry, ext, plugin.CapRelativeImportCalculator, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		expected, err := calc.CalculateRelativeImport(path, srcAbs)
		if err != nil {
			return nil
		}
		content, err := readFile(path)
		if err != nil {
			return errs.Wrap(errs.InvalidArgs, err, "read %s", path)
		}
		imports, err := analyzer.AnalyzeImports(ctx, content, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}

		namesSymbol := make(map[uint32]bool) // import lines naming symbol
		for _, imp := range imports {
			if imp.ModulePath != expected {
				continue
			}
			if imp.NamespaceImport != "" || imp.DefaultImport == symbol {
				namesSymbol[imp.Range.Start.Line] = true
			}
			for _, n := range imp.NamedImports {
				if n == symbol {
					namesSymbol[imp.Range.Start.Line] = true
				}
			}
		}
		if len(namesSymbol) == 0 {
			return nil
		}

		rewriter, err := requireCapability[plugin.FileReferenceRewriter](c.Registry, ext, plugin.CapFileReferenceRewriter, proto.URI(pathutil.ToURI(path)))
		if err != nil {
			return nil
		}
		edits, err := rewriter.RewriteFileReferences(ctx, content, srcURI, dstURI, path)
		if err != nil {
			return wrapPluginErr(err, "rewrite file references in", path)
		}
		var kept []proto.TextEdit
		for _, e := range edits {
			if namesSymbol[e.Range.Start.Line] {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		_, uri, err := c.readAndChecksum(plan, path)
		if err != nil {
			return err
		}
		for _, e := range kept {
			plan.Edit.AddEdit(uri, e)
		}
		return nil
	})
}
