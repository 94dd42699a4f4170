// Package plugin implements the language-plugin dispatch registry
// (spec §4.1): an extension-keyed directory of language plugins exposing
// a narrow capability trait the core calls through, never falling back
// across extensions. The shape mirrors the teacher's
// framework/ast.ParserRegistry (register-by-key, look-up-by-key) and its
// tools/cli_registry.go pattern of collecting per-group tool sets behind
// one flat registry.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/proto"
)

// SymbolParser extracts declarations from source text.
type SymbolParser interface {
	ParseSymbols(ctx context.Context, source []byte, uri proto.URI) ([]proto.Symbol, error)
}

// ImportAnalyzer extracts import/use statements from source text.
type ImportAnalyzer interface {
	AnalyzeImports(ctx context.Context, source []byte, uri proto.URI) ([]proto.Import, error)
}

// ModuleLocator maps a module designator to on-disk files.
type ModuleLocator interface {
	LocateModuleFiles(ctx context.Context, modulePath, projectRoot string) ([]proto.URI, error)
}

// RelativeImportCalculator computes the import specifier one file would
// use to refer to another.
type RelativeImportCalculator interface {
	CalculateRelativeImport(fromFile, toFile string) (string, error)
}

// FileReferenceRewriter produces edits updating imports that refer to a
// file that moved or was renamed. importerPath is the on-disk path of the
// file content came from, needed to resolve relative specifiers like
// "./utils" against the importer's own directory rather than oldURI's.
type FileReferenceRewriter interface {
	RewriteFileReferences(ctx context.Context, content []byte, oldURI, newURI proto.URI, importerPath string) ([]proto.TextEdit, error)
}

// ModuleReferenceRewriter produces edits updating references to a
// language-level module path that was renamed (e.g. a Go import path or a
// package namespace), used by the consolidation flow.
type ModuleReferenceRewriter interface {
	RewriteModuleReferences(ctx context.Context, content []byte, oldModule, newModule string) ([]proto.TextEdit, error)
}

// ManifestPlugin reads and rewrites a language's package manifest.
type ManifestPlugin interface {
	AnalyzeManifest(ctx context.Context, path string) (proto.Manifest, error)
	UpdateManifestDependencies(ctx context.Context, m proto.Manifest, add, remove []proto.Dependency) (proto.Manifest, error)
	GenerateManifest(ctx context.Context, name, version string) ([]byte, error)
}

// PackageCreator emits the file operations and manifest bytes needed to
// scaffold a new package of a given kind (e.g. "library", "app").
type PackageCreator interface {
	CreatePackage(ctx context.Context, workspaceRoot, newPackageRelPath, kind string) ([]proto.FileOp, []byte, error)
}

// Plugin is the full set of capabilities a language plugin may implement.
// Each method set above is also usable standalone via the narrower
// capability lookups below; Plugin exists so the registry can hold one
// value per extension and type-assert out the capability a caller wants.
type Plugin interface {
	// Name identifies the plugin for diagnostics (e.g. "typescript", "go").
	Name() string
	// Extensions lists the file extensions (with leading dot) this
	// plugin claims, e.g. []string{".ts", ".tsx"}.
	Extensions() []string
}

// Capability identifies one of the narrow traits above, used to report
// precise CapabilityUnavailable errors.
type Capability string

const (
	CapSymbolParser              Capability = "parse_symbols"
	CapImportAnalyzer            Capability = "analyze_imports"
	CapModuleLocator             Capability = "locate_module_files"
	CapRelativeImportCalculator  Capability = "calculate_relative_import"
	CapFileReferenceRewriter     Capability = "rewrite_file_references"
	CapModuleReferenceRewriter   Capability = "rewrite_module_references"
	CapManifestPlugin            Capability = "manifest"
	CapPackageCreator            Capability = "create_package"
)

// Registry maps file extensions to the plugins that claim them. It is
// populated once at startup and read-only thereafter (spec §5 "Shared
// resource policy": the registry is the one piece of global state, and
// it never mutates after initialization).
type Registry struct {
	mu      sync.RWMutex
	byExt   map[string]Plugin
	plugins []Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Plugin)}
}

// Register adds plugin under every extension it claims. Registering a
// second plugin for an already-claimed extension replaces the first,
// matching the teacher's ParserRegistry.Register semantics (last write
// wins) — callers control ordering at startup.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
	for _, ext := range p.Extensions() {
		r.byExt[ext] = p
	}
}

// Lookup returns the plugin registered for ext, if any.
func (r *Registry) Lookup(ext string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[ext]
	return p, ok
}

// Extensions returns every extension with a registered plugin, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// WithCapability looks up the plugin for ext and asserts it implements
// the capability named by cap, returning a precise CapabilityUnavailable
// error (never a silent no-op) when either the extension or the
// capability is missing. uri is included in the error for caller
// diagnostics.
func WithCapability[T any](r *Registry, ext string, cap Capability, uri proto.URI) (T, error) {
	var zero T
	r.mu.RLock()
	p, ok := r.byExt[ext]
	r.mu.RUnlock()
	if !ok {
		return zero, errs.New(errs.CapabilityUnavailable, "no plugin registered for extension %q", ext).
			WithDetail("extension", ext).WithDetail("uri", string(uri)).WithDetail("feature", string(cap))
	}
	typed, ok := any(p).(T)
	if !ok {
		return zero, errs.New(errs.CapabilityUnavailable, "plugin %q does not support %s", p.Name(), cap).
			WithDetail("extension", ext).WithDetail("uri", string(uri)).WithDetail("feature", string(cap))
	}
	return typed, nil
}

// Describe renders a human-readable summary of registered plugins, used
// by the health_check tool.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := ""
	for i, p := range r.plugins {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s%v", p.Name(), p.Extensions())
	}
	return out
}
