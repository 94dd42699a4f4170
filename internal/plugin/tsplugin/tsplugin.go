// Package tsplugin implements a regex/line-scanning TypeScript and
// JavaScript plugin: the "regex fallback" design note in spec §9 calls
// out that some plugins will be a subprocess or a regex scan rather than
// a full parser. This plugin is a worked reference for the capability
// trait defined in internal/plugin; production TypeScript tooling is an
// external collaborator per spec §1.
package tsplugin

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/proto"
)

// Plugin is the TypeScript/JavaScript language plugin.
type Plugin struct{}

// New returns a ready-to-register TypeScript plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "typescript" }

func (p *Plugin) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

var (
	exportFuncRe  = regexp.MustCompile(`(?m)^\s*export\s+(?:async\s+)?function\s+([A-Za-z_$][\w$]*)`)
	exportClassRe = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?class\s+([A-Za-z_$][\w$]*)`)
	exportConstRe = regexp.MustCompile(`(?m)^\s*export\s+const\s+([A-Za-z_$][\w$]*)`)
	exportIfaceRe = regexp.MustCompile(`(?m)^\s*export\s+interface\s+([A-Za-z_$][\w$]*)`)
	exportTypeRe  = regexp.MustCompile(`(?m)^\s*export\s+type\s+([A-Za-z_$][\w$]*)`)

	importRe = regexp.MustCompile(`(?m)^\s*import\s+(type\s+)?(?:([A-Za-z_$][\w$]*)\s*,\s*)?(?:\{([^}]*)\}\s*)?(?:\*\s+as\s+([A-Za-z_$][\w$]*)\s*)?from\s+['"]([^'"]+)['"]`)
	bareImportRe = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
)

// ParseSymbols implements plugin.SymbolParser using line-anchored regexes
// over exported declarations. It intentionally does not attempt full
// syntax awareness (nested scopes, overloads) — that is the dividing
// line between a plugin and the language server the core also queries.
func (p *Plugin) ParseSymbols(ctx context.Context, source []byte, uri proto.URI) ([]proto.Symbol, error) {
	text := string(source)
	lines := strings.Split(text, "\n")
	var out []proto.Symbol

	collect := func(re *regexp.Regexp, kind proto.SymbolKind) {
		for i, line := range lines {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[len(m)-1]
			out = append(out, proto.Symbol{
				Name:     name,
				Kind:     kind,
				URI:      uri,
				IsPublic: true,
				Range: proto.Range{
					Start: proto.Position{Line: uint32(i), Character: uint32(strings.Index(line, name))},
					End:   proto.Position{Line: uint32(i), Character: uint32(strings.Index(line, name) + len(name))},
				},
			})
		}
	}

	collect(exportFuncRe, proto.SymbolFunction)
	collect(exportClassRe, proto.SymbolClass)
	collect(exportConstRe, proto.SymbolConstant)
	collect(exportIfaceRe, proto.SymbolInterface)
	collect(exportTypeRe, proto.SymbolTypeAlias)
	return out, nil
}

// AnalyzeImports implements plugin.ImportAnalyzer.
func (p *Plugin) AnalyzeImports(ctx context.Context, source []byte, uri proto.URI) ([]proto.Import, error) {
	var out []proto.Import
	lines := strings.Split(string(source), "\n")
	for i, line := range lines {
		if m := importRe.FindStringSubmatch(line); m != nil {
			typeOnly := m[1] != ""
			def := m[2]
			named := splitNamed(m[3])
			ns := m[4]
			modPath := m[5]
			out = append(out, proto.Import{
				ModulePath:      modPath,
				Kind:            proto.ImportESModule,
				NamedImports:    named,
				DefaultImport:   def,
				NamespaceImport: ns,
				TypeOnly:        typeOnly,
				Range: proto.Range{
					Start: proto.Position{Line: uint32(i)},
					End:   proto.Position{Line: uint32(i), Character: uint32(len(line))},
				},
			})
			continue
		}
		if m := bareImportRe.FindStringSubmatch(line); m != nil {
			out = append(out, proto.Import{
				ModulePath: m[1],
				Kind:       proto.ImportESModule,
				Range: proto.Range{
					Start: proto.Position{Line: uint32(i)},
					End:   proto.Position{Line: uint32(i), Character: uint32(len(line))},
				},
			})
		}
	}
	return out, nil
}

func splitNamed(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// "Foo as Bar" -> keep the local binding name, Bar.
		if idx := strings.Index(part, " as "); idx >= 0 {
			part = strings.TrimSpace(part[idx+4:])
		}
		out = append(out, part)
	}
	return out
}

// CalculateRelativeImport implements plugin.RelativeImportCalculator.
func (p *Plugin) CalculateRelativeImport(fromFile, toFile string) (string, error) {
	fromDir := filepath.Dir(fromFile)
	rel, err := filepath.Rel(fromDir, toFile)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel, nil
}

// RewriteFileReferences implements plugin.FileReferenceRewriter: it finds
// every import statement in content whose resolved target equals oldURI
// and rewrites the specifier to point at newURI's relative path from the
// importing file. importerPath must be the on-disk path of the file
// content came from, since a relative specifier like "./utils" resolves
// against the importer's own directory, not oldURI's.
func (p *Plugin) RewriteFileReferences(ctx context.Context, content []byte, oldURI, newURI proto.URI, importerPath string) ([]proto.TextEdit, error) {
	oldPath := uriToPathNoExt(string(oldURI))
	newPath := uriToPathNoExt(string(newURI))

	var edits []proto.TextEdit
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		specStart, specEnd, spec, ok := findImportSpecifier(line)
		if !ok {
			continue
		}
		resolved := resolveSpecifier(importerPath, spec)
		if resolved != oldPath {
			continue
		}
		newSpec, err := relativeSpecifier(importerPath, newPath)
		if err != nil {
			return nil, fmt.Errorf("compute new import specifier: %w", err)
		}
		edits = append(edits, proto.TextEdit{
			Range: proto.Range{
				Start: proto.Position{Line: uint32(i), Character: uint32(specStart)},
				End:   proto.Position{Line: uint32(i), Character: uint32(specEnd)},
			},
			NewText: newSpec,
		})
	}
	return edits, nil
}

// RewriteModuleReferences implements plugin.ModuleReferenceRewriter for
// the consolidation flow: every specifier beginning with oldModule has
// that prefix swapped for newModule.
func (p *Plugin) RewriteModuleReferences(ctx context.Context, content []byte, oldModule, newModule string) ([]proto.TextEdit, error) {
	var edits []proto.TextEdit
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		specStart, specEnd, spec, ok := findImportSpecifier(line)
		if !ok || !strings.HasPrefix(spec, oldModule) {
			continue
		}
		newSpec := newModule + strings.TrimPrefix(spec, oldModule)
		edits = append(edits, proto.TextEdit{
			Range: proto.Range{
				Start: proto.Position{Line: uint32(i), Character: uint32(specStart)},
				End:   proto.Position{Line: uint32(i), Character: uint32(specEnd)},
			},
			NewText: newSpec,
		})
	}
	return edits, nil
}

func findImportSpecifier(line string) (start, end int, spec string, ok bool) {
	if m := importRe.FindStringSubmatchIndex(line); m != nil {
		return m[2*5], m[2*5+1], line[m[2*5]:m[2*5+1]], true
	}
	if m := bareImportRe.FindStringSubmatchIndex(line); m != nil {
		return m[2], m[3], line[m[2]:m[3]], true
	}
	return 0, 0, "", false
}

func resolveSpecifier(importerPath, spec string) string {
	if !strings.HasPrefix(spec, ".") {
		return spec // bare module specifier, not a file reference
	}
	joined := filepath.Join(filepath.Dir(importerPath), filepath.FromSlash(spec))
	return uriToPathNoExt(proto.URI("file://" + filepath.ToSlash(joined)))
}

func relativeSpecifier(importerPath string, targetPathNoExt proto.URI) (string, error) {
	target, err := pathFromURI(string(targetPathNoExt))
	if err != nil {
		target = string(targetPathNoExt)
	}
	rel, err := filepath.Rel(filepath.Dir(importerPath), target)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel, nil
}

func uriToPathNoExt(uri proto.URI) string {
	path, err := pathFromURI(string(uri))
	if err != nil {
		path = string(uri)
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func pathFromURI(uri string) (string, error) {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		p := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), filepath.Ext(uri))
		return p, nil
	}
	return strings.TrimSuffix(uri, filepath.Ext(uri)), nil
}
