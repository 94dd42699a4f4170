// Package proto holds the core data model shared by the LSP layer, the
// planners, and the executor: positions, ranges, text edits, workspace
// edits, symbols, imports, and manifests (spec §3). Position and Range
// reuse go.lsp.dev/protocol's wire types directly since their UTF-16
// semantics are exactly what LSP servers expect — the teacher's own LSP
// client code (tools/lsp_process_client.go) passes these types straight
// through to jsonrpc2 calls.
package proto

import (
	"sort"

	lsp "go.lsp.dev/protocol"
)

// Position and Range alias the LSP wire types so the planner/executor
// never need their own copy that would drift from the protocol.
type Position = lsp.Position
type Range = lsp.Range

// URI identifies a document by its file:// (or otherwise scheme-qualified)
// location, matching LSP's DocumentURI.
type URI = lsp.DocumentURI

// TextEdit replaces the text spanning Range with NewText. An empty Range
// (Start == End) is a pure insertion.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// FileOpKind enumerates the file-level operations a WorkspaceEdit may
// carry, applied after all textual edits against their pre-operation URI.
type FileOpKind string

const (
	FileOpCreate    FileOpKind = "create"
	FileOpRename    FileOpKind = "rename"
	FileOpDelete    FileOpKind = "delete"
	FileOpMoveDir   FileOpKind = "move_dir"
)

// FileOp is a single file-system-level operation recorded by a plan.
type FileOp struct {
	Kind    FileOpKind `json:"kind"`
	OldURI  URI        `json:"oldUri,omitempty"`
	NewURI  URI        `json:"newUri,omitempty"`
	Content []byte     `json:"content,omitempty"` // for FileOpCreate
}

// WorkspaceEdit is a mapping from document URI to an ordered sequence of
// TextEdit, plus a totally-ordered sequence of file-level operations.
type WorkspaceEdit struct {
	Changes map[URI][]TextEdit `json:"changes"`
	FileOps []FileOp           `json:"fileOps,omitempty"`
}

// NewWorkspaceEdit returns an empty, ready-to-use WorkspaceEdit.
func NewWorkspaceEdit() *WorkspaceEdit {
	return &WorkspaceEdit{Changes: make(map[URI][]TextEdit)}
}

// AddEdit appends a text edit for uri. Callers are expected to pass
// non-overlapping edits; ApplyOrder sorts them into reverse-document
// order for safe sequential application.
func (w *WorkspaceEdit) AddEdit(uri URI, edit TextEdit) {
	if w.Changes == nil {
		w.Changes = make(map[URI][]TextEdit)
	}
	w.Changes[uri] = append(w.Changes[uri], edit)
}

// AddFileOp appends a file-level operation, preserving authoring order.
func (w *WorkspaceEdit) AddFileOp(op FileOp) {
	w.FileOps = append(w.FileOps, op)
}

// URIs returns every URI touched by textual edits, sorted for
// deterministic iteration (canonical path order, per spec §4.6
// "Concurrency").
func (w *WorkspaceEdit) URIs() []URI {
	out := make([]URI, 0, len(w.Changes))
	for u := range w.Changes {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EditCount returns the total number of text edits across all URIs, used
// to enforce the executor's PlanTooLarge safety cap.
func (w *WorkspaceEdit) EditCount() int {
	n := 0
	for _, edits := range w.Changes {
		n += len(edits)
	}
	return n
}

// SortedEditsForApply returns a copy of the edits for uri ordered for
// safe sequential in-memory application: reverse document order (last
// line first), so earlier positions remain valid as later edits are
// applied (spec §3 WorkspaceEdit invariant).
func SortedEditsForApply(edits []TextEdit) []TextEdit {
	out := make([]TextEdit, len(edits))
	copy(out, edits)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Start.Line != out[j].Range.Start.Line {
			return out[i].Range.Start.Line > out[j].Range.Start.Line
		}
		return out[i].Range.Start.Character > out[j].Range.Start.Character
	})
	return out
}

// SymbolKind enumerates the language-neutral symbol kinds plugins report.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "Function"
	SymbolClass     SymbolKind = "Class"
	SymbolInterface SymbolKind = "Interface"
	SymbolEnum      SymbolKind = "Enum"
	SymbolTypeAlias SymbolKind = "TypeAlias"
	SymbolConstant  SymbolKind = "Constant"
	SymbolVariable  SymbolKind = "Variable"
	SymbolMethod    SymbolKind = "Method"
	SymbolField     SymbolKind = "Field"
	SymbolModule    SymbolKind = "Module"
)

// Symbol is a named declaration reported by a language plugin.
type Symbol struct {
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	URI      URI        `json:"uri"`
	Range    Range      `json:"range"`
	IsPublic bool       `json:"isPublic"`
}

// ImportKind enumerates the module-system flavors a plugin's import
// analysis can report.
type ImportKind string

const (
	ImportESModule  ImportKind = "es_module"
	ImportCommonJS  ImportKind = "commonjs"
	ImportDynamic   ImportKind = "dynamic"
	ImportNativeUse ImportKind = "native_use"
	ImportGoImport  ImportKind = "go_import"
)

// Import is a single import/use statement extracted from a source file.
type Import struct {
	ModulePath       string     `json:"modulePath"`
	Kind             ImportKind `json:"kind"`
	NamedImports     []string   `json:"namedImports,omitempty"`
	DefaultImport    string     `json:"defaultImport,omitempty"`
	NamespaceImport  string     `json:"namespaceImport,omitempty"`
	TypeOnly         bool       `json:"typeOnly,omitempty"`
	Range            Range      `json:"range"`
}

// Dependency is a single entry of a Manifest's dependency list.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Manifest abstracts a language-specific package descriptor (package.json,
// go.mod, Cargo.toml, pyproject.toml, ...).
type Manifest struct {
	Path            string       `json:"path"`
	Name            string       `json:"name"`
	Version         string       `json:"version"`
	Dependencies    []Dependency `json:"dependencies"`
	DevDependencies []Dependency `json:"devDependencies,omitempty"`
	Members         []string     `json:"members,omitempty"`
	Raw             []byte       `json:"-"`
}
