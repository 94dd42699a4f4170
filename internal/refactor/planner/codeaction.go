package planner

import (
	"context"
	"sort"
	"strings"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
	lsp "go.lsp.dev/protocol"
)

func codeActionCapCheck(caps lsp.ServerCapabilities) bool { return caps.CodeActionProvider != nil }

// codeActionPlan issues textDocument/codeAction restricted to actionKind
// over rng, takes the first action that carries its own WorkspaceEdit,
// and turns it into a Plan of type planType (spec §4.5.3: "calling LSP
// code-action requests when available").
func (c *Context) codeActionPlan(ctx context.Context, planType refactor.PlanType, file string, rng proto.Range, actionKind string) (*refactor.Plan, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	sup, uri, err := c.openForRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	params := lsp.CodeActionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
		Range:        rng,
		Context: lsp.CodeActionContext{
			Only: []lsp.CodeActionKind{lsp.CodeActionKind(actionKind)},
		},
	}
	var actions []lsp.CodeAction
	if err := sup.Call(ctx, "textDocument/codeAction", codeActionCapCheck, "codeAction:"+actionKind, params, &actions); err != nil {
		return nil, err
	}

	for _, a := range actions {
		if a.Edit == nil {
			continue
		}
		plan := refactor.New(planType)
		plan.Metadata["codeActionKind"] = actionKind
		plan.Metadata["title"] = a.Title
		if err := c.absorbWorkspaceEdit(plan, *a.Edit); err != nil {
			return nil, err
		}
		return plan, nil
	}
	return nil, errs.New(errs.CapabilityUnavailable, "language server returned no %s code action for %s", actionKind, file).
		WithDetail("uri", string(uri)).WithDetail("feature", actionKind)
}

// Extract turns the selection rng in file into a new declaration via the
// LSP's refactor.extract code action (spec §4.5.3). The server's action
// chooses the new declaration's name; newName is not sent to the server
// and is only recorded in the plan's metadata.
func (c *Context) Extract(ctx context.Context, file string, rng proto.Range, newName string) (*refactor.Plan, error) {
	plan, err := c.codeActionPlan(ctx, refactor.PlanExtract, file, rng, "refactor.extract")
	if err != nil {
		return nil, err
	}
	plan.Metadata["newName"] = newName
	return plan, nil
}

// Inline replaces every use of the symbol at pos with its definition via
// the LSP's refactor.inline code action.
func (c *Context) Inline(ctx context.Context, file string, pos proto.Position) (*refactor.Plan, error) {
	return c.codeActionPlan(ctx, refactor.PlanInline, file, proto.Range{Start: pos, End: pos}, "refactor.inline")
}

// Transform applies an arbitrary server-advertised code action kind over
// rng (e.g. "source.organizeImports", "refactor.rewrite"), used for
// transforms the core doesn't model with a dedicated intent.
func (c *Context) Transform(ctx context.Context, file string, rng proto.Range, codeActionKind string) (*refactor.Plan, error) {
	return c.codeActionPlan(ctx, refactor.PlanTransform, file, rng, codeActionKind)
}

// Reorder rearranges file's top-level declarations into the order given
// by newOrder (a list of symbol names), entirely via the plugin's symbol
// extractor rather than LSP: reordering is a syntactic operation and
// must stay deterministic across servers (spec §4.5.3 "same inputs and
// same source bytes ⇒ same edits").
func (c *Context) Reorder(ctx context.Context, file string, newOrder []string) (*refactor.Plan, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	content, err := readFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "read %s", file)
	}
	uri := proto.URI(pathutil.ToURI(path))
	parser, err := requireCapability[plugin.SymbolParser](c.Registry, extOf(path), plugin.CapSymbolParser, uri)
	if err != nil {
		return nil, err
	}
	symbols, err := parser.ParseSymbols(ctx, content, uri)
	if err != nil {
		return nil, wrapPluginErr(err, "parse symbols", path)
	}

	byName := make(map[string]proto.Symbol, len(symbols))
	for _, s := range symbols {
		byName[s.Name] = s
	}
	ordered := make([]proto.Symbol, 0, len(newOrder))
	for _, name := range newOrder {
		s, ok := byName[name]
		if !ok {
			return nil, errs.New(errs.InvalidArgs, "symbol %q not found in %s", name, file)
		}
		ordered = append(ordered, s)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Range.Start.Line < symbols[j].Range.Start.Line })

	lines := strings.Split(string(content), "\n")
	var blocks []string
	for _, s := range symbols {
		if int(s.Range.End.Line) >= len(lines) {
			return nil, errs.New(errs.InternalError, "symbol range exceeds file length")
		}
		blocks = append(blocks, strings.Join(lines[s.Range.Start.Line:s.Range.End.Line+1], "\n"))
	}

	reorderedBlocks := make([]string, 0, len(ordered))
	for _, s := range ordered {
		for i, orig := range symbols {
			if orig.Name == s.Name && orig.Range == s.Range {
				reorderedBlocks = append(reorderedBlocks, blocks[i])
				break
			}
		}
	}

	firstLine := symbols[0].Range.Start.Line
	lastLine := symbols[len(symbols)-1].Range.End.Line

	plan := refactor.New(refactor.PlanReorder)
	plan.Metadata["order"] = newOrder
	_, ownURI, err := c.readAndChecksum(plan, path)
	if err != nil {
		return nil, err
	}
	plan.Edit.AddEdit(ownURI, proto.TextEdit{
		Range: proto.Range{
			Start: proto.Position{Line: firstLine, Character: 0},
			End:   proto.Position{Line: lastLine + 1, Character: 0},
		},
		NewText: strings.Join(reorderedBlocks, "\n\n") + "\n",
	})
	return plan, nil
}

// DeleteSymbol removes the declaration at (file, pos). It prefers an LSP
// code action when the server offers one for the range, and otherwise
// falls back to stripping the plugin-reported symbol extent directly
// (spec §4.5.3: "else a plugin fallback").
func (c *Context) DeleteSymbol(ctx context.Context, file string, pos proto.Position) (*refactor.Plan, error) {
	path, err := c.Resolver.Resolve(file)
	if err != nil {
		return nil, err
	}
	if plan, err := c.codeActionPlan(ctx, refactor.PlanDelete, file, proto.Range{Start: pos, End: pos}, "refactor.rewrite"); err == nil {
		return plan, nil
	}

	content, err := readFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "read %s", file)
	}
	uri := proto.URI(pathutil.ToURI(path))
	parser, err := requireCapability[plugin.SymbolParser](c.Registry, extOf(path), plugin.CapSymbolParser, uri)
	if err != nil {
		return nil, err
	}
	symbols, err := parser.ParseSymbols(ctx, content, uri)
	if err != nil {
		return nil, wrapPluginErr(err, "parse symbols", path)
	}
	target, ok := symbolContaining(symbols, pos)
	if !ok {
		return nil, errs.New(errs.InvalidArgs, "no symbol found at the given position in %s", file)
	}

	plan := refactor.New(refactor.PlanDelete)
	plan.Metadata["symbol"] = target.Name
	_, ownURI, err := c.readAndChecksum(plan, path)
	if err != nil {
		return nil, err
	}
	plan.Edit.AddEdit(ownURI, proto.TextEdit{
		Range: proto.Range{
			Start: proto.Position{Line: target.Range.Start.Line, Character: 0},
			End:   proto.Position{Line: target.Range.End.Line + 1, Character: 0},
		},
		NewText: "",
	})
	return plan, nil
}
