// Package goplugin implements a Go-language plugin backed by the
// standard library's go/parser and go/ast. No pack example reaches for a
// third-party Go source parser — go/parser is the ecosystem-standard
// tool for this job, so using it here is the one deliberately
// stdlib-only piece of the plugin layer (see DESIGN.md).
package goplugin

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lexcodex/devbridge/internal/proto"
)

// Plugin is the Go language plugin.
type Plugin struct{}

// New returns a ready-to-register Go plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string      { return "go" }
func (p *Plugin) Extensions() []string { return []string{".go", ".mod"} }

// ParseSymbols implements plugin.SymbolParser using go/parser.
func (p *Plugin) ParseSymbols(ctx context.Context, source []byte, uri proto.URI) ([]proto.Symbol, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, string(uri), source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse go source: %w", err)
	}

	var out []proto.Symbol
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			kind := proto.SymbolFunction
			if d.Recv != nil {
				kind = proto.SymbolMethod
			}
			out = append(out, symbolFor(fset, d.Name, kind))
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					kind := proto.SymbolTypeAlias
					switch s.Type.(type) {
					case *ast.StructType:
						kind = proto.SymbolClass
					case *ast.InterfaceType:
						kind = proto.SymbolInterface
					}
					out = append(out, symbolFor(fset, s.Name, kind))
				case *ast.ValueSpec:
					kind := proto.SymbolVariable
					if d.Tok == token.CONST {
						kind = proto.SymbolConstant
					}
					for _, name := range s.Names {
						out = append(out, symbolFor(fset, name, kind))
					}
				}
			}
		}
	}
	for i := range out {
		out[i].URI = uri
	}
	return out, nil
}

func symbolFor(fset *token.FileSet, ident *ast.Ident, kind proto.SymbolKind) proto.Symbol {
	pos := fset.Position(ident.Pos())
	end := fset.Position(ident.End())
	return proto.Symbol{
		Name:     ident.Name,
		Kind:     kind,
		IsPublic: ident.IsExported(),
		Range: proto.Range{
			Start: proto.Position{Line: uint32(pos.Line - 1), Character: uint32(pos.Column - 1)},
			End:   proto.Position{Line: uint32(end.Line - 1), Character: uint32(end.Column - 1)},
		},
	}
}

// AnalyzeImports implements plugin.ImportAnalyzer using go/parser.
func (p *Plugin) AnalyzeImports(ctx context.Context, source []byte, uri proto.URI) ([]proto.Import, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, string(uri), source, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("parse go imports: %w", err)
	}

	var out []proto.Import
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		var alias string
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		startPos := fset.Position(imp.Pos())
		endPos := fset.Position(imp.End())
		out = append(out, proto.Import{
			ModulePath:      path,
			Kind:            proto.ImportGoImport,
			NamespaceImport: alias,
			Range: proto.Range{
				Start: proto.Position{Line: uint32(startPos.Line - 1), Character: uint32(startPos.Column - 1)},
				End:   proto.Position{Line: uint32(endPos.Line - 1), Character: uint32(endPos.Column - 1)},
			},
		})
	}
	return out, nil
}

// CalculateRelativeImport implements plugin.RelativeImportCalculator.
// Go imports are package-path based rather than file-relative; this
// derives the package import path by walking up from toFile to the
// nearest go.mod and joining the module path with the package directory,
// falling back to the slash-separated path from fromFile's directory to
// toFile's directory when no go.mod is found.
func (p *Plugin) CalculateRelativeImport(fromFile, toFile string) (string, error) {
	modPath, modDir, err := findModule(toFile)
	if err != nil {
		rel, relErr := filepath.Rel(filepath.Dir(fromFile), filepath.Dir(toFile))
		if relErr != nil {
			return "", relErr
		}
		return filepath.ToSlash(rel), nil
	}
	pkgDir := filepath.Dir(toFile)
	rel, err := filepath.Rel(modDir, pkgDir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return modPath, nil
	}
	return modPath + "/" + filepath.ToSlash(rel), nil
}

func findModule(from string) (modulePath, moduleDir string, err error) {
	dir := filepath.Dir(from)
	for {
		data, readErr := os.ReadFile(filepath.Join(dir, "go.mod"))
		if readErr == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if strings.HasPrefix(line, "module ") {
					return strings.TrimSpace(strings.TrimPrefix(line, "module")), dir, nil
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("no go.mod found above %s", from)
		}
		dir = parent
	}
}

// RewriteFileReferences implements plugin.FileReferenceRewriter: a
// renamed .go file never changes another file's import statement (Go
// imports name packages, not files), so this always returns no edits.
// When the rename also moves the file to a different directory, the
// package's import path itself changes; that rewrite is done by
// RewriteModuleReferences, not here.
func (p *Plugin) RewriteFileReferences(ctx context.Context, content []byte, oldURI, newURI proto.URI, importerPath string) ([]proto.TextEdit, error) {
	return nil, nil
}

// RewriteModuleReferences implements plugin.ModuleReferenceRewriter:
// rewrites import declarations whose path has oldModule as a path
// segment prefix to use newModule instead.
func (p *Plugin) RewriteModuleReferences(ctx context.Context, content []byte, oldModule, newModule string) ([]proto.TextEdit, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("parse go imports: %w", err)
	}
	var edits []proto.TextEdit
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if path != oldModule && !strings.HasPrefix(path, oldModule+"/") {
			continue
		}
		newPath := newModule + strings.TrimPrefix(path, oldModule)
		startPos := fset.Position(imp.Path.Pos())
		endPos := fset.Position(imp.Path.End())
		edits = append(edits, proto.TextEdit{
			Range: proto.Range{
				Start: proto.Position{Line: uint32(startPos.Line - 1), Character: uint32(startPos.Column - 1)},
				End:   proto.Position{Line: uint32(endPos.Line - 1), Character: uint32(endPos.Column - 1)},
			},
			NewText: strconv.Quote(newPath),
		})
	}
	return edits, nil
}

// AnalyzeManifest implements plugin.ManifestPlugin for go.mod: a small
// line-oriented scan rather than golang.org/x/mod/modfile, since the
// plugin only needs the module path and require-directive versions, not
// full directive validation.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (proto.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return proto.Manifest{}, fmt.Errorf("read go.mod: %w", err)
	}
	m := proto.Manifest{Path: path, Raw: data}
	inRequireBlock := false
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "module "):
			m.Name = strings.TrimSpace(strings.TrimPrefix(line, "module"))
		case line == "require (":
			inRequireBlock = true
		case inRequireBlock && line == ")":
			inRequireBlock = false
		case inRequireBlock || strings.HasPrefix(line, "require "):
			dep := strings.TrimSpace(strings.TrimPrefix(line, "require"))
			dep = strings.TrimSuffix(dep, " // indirect")
			fields := strings.Fields(dep)
			if len(fields) == 2 {
				m.Dependencies = append(m.Dependencies, proto.Dependency{Name: fields[0], Version: fields[1]})
			}
		}
	}
	return m, nil
}

// UpdateManifestDependencies implements plugin.ManifestPlugin, rewriting
// go.mod's require block from m.Dependencies plus add, minus remove, and
// regenerating Raw so callers can diff or write it back whole.
func (p *Plugin) UpdateManifestDependencies(ctx context.Context, m proto.Manifest, add, remove []proto.Dependency) (proto.Manifest, error) {
	deps := make([]proto.Dependency, 0, len(m.Dependencies)+len(add))
	removed := make(map[string]bool, len(remove))
	for _, d := range remove {
		removed[d.Name] = true
	}
	for _, d := range m.Dependencies {
		if !removed[d.Name] {
			deps = append(deps, d)
		}
	}
	deps = append(deps, add...)
	m.Dependencies = deps

	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n\ngo 1.25\n", m.Name)
	if len(deps) > 0 {
		b.WriteString("\nrequire (\n")
		for _, d := range deps {
			fmt.Fprintf(&b, "\t%s %s\n", d.Name, d.Version)
		}
		b.WriteString(")\n")
	}
	m.Raw = []byte(b.String())
	return m, nil
}

// GenerateManifest implements plugin.ManifestPlugin for a brand-new
// module, used by CreatePackage when a new package needs its own go.mod
// (a nested module rather than a subdirectory of the caller's).
func (p *Plugin) GenerateManifest(ctx context.Context, name, version string) ([]byte, error) {
	return []byte(fmt.Sprintf("module %s\n\ngo 1.25\n", name)), nil
}

// CreatePackage implements plugin.PackageCreator: Go packages are plain
// subdirectories of the enclosing module, so this emits a single
// placeholder source file declaring the package and no manifest of its
// own — only the "standalone-module" kind needs a nested go.mod, for the
// rare case of carving out an independently-versioned module.
func (p *Plugin) CreatePackage(ctx context.Context, workspaceRoot, newPackageRelPath, kind string) ([]proto.FileOp, []byte, error) {
	pkgName := filepath.Base(newPackageRelPath)
	docPath := filepath.Join(workspaceRoot, newPackageRelPath, "doc.go")
	content := fmt.Sprintf("// Package %s.\npackage %s\n", pkgName, pkgName)

	ops := []proto.FileOp{{
		Kind:    proto.FileOpCreate,
		NewURI:  proto.URI("file://" + filepath.ToSlash(docPath)),
		Content: []byte(content),
	}}

	if kind != "standalone-module" {
		return ops, nil, nil
	}
	manifest, err := p.GenerateManifest(ctx, pkgName, "v0.0.0")
	if err != nil {
		return nil, nil, err
	}
	return ops, manifest, nil
}
