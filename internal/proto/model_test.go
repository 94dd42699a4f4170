package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddEditAndURIsSortedDeterministically(t *testing.T) {
	w := NewWorkspaceEdit()
	w.AddEdit(URI("file:///b.go"), TextEdit{NewText: "b"})
	w.AddEdit(URI("file:///a.go"), TextEdit{NewText: "a"})

	assert.Equal(t, []URI{URI("file:///a.go"), URI("file:///b.go")}, w.URIs())
	assert.Equal(t, 2, w.EditCount())
}

func TestAddFileOpPreservesAuthoringOrder(t *testing.T) {
	w := NewWorkspaceEdit()
	w.AddFileOp(FileOp{Kind: FileOpRename, OldURI: "file:///a.go", NewURI: "file:///b.go"})
	w.AddFileOp(FileOp{Kind: FileOpDelete, OldURI: "file:///c.go"})

	assert.Len(t, w.FileOps, 2)
	assert.Equal(t, FileOpRename, w.FileOps[0].Kind)
	assert.Equal(t, FileOpDelete, w.FileOps[1].Kind)
}

func TestSortedEditsForApplyOrdersLastLineFirst(t *testing.T) {
	edits := []TextEdit{
		{Range: Range{Start: Position{Line: 0, Character: 0}}, NewText: "first"},
		{Range: Range{Start: Position{Line: 5, Character: 2}}, NewText: "last"},
		{Range: Range{Start: Position{Line: 5, Character: 0}}, NewText: "middle"},
	}
	sorted := SortedEditsForApply(edits)
	require := assert.New(t)
	require.Equal("last", sorted[0].NewText)
	require.Equal("middle", sorted[1].NewText)
	require.Equal("first", sorted[2].NewText)

	// the input slice must be untouched (SortedEditsForApply copies)
	assert.Equal(t, "first", edits[0].NewText)
}

func TestEditCountSumsAcrossURIs(t *testing.T) {
	w := NewWorkspaceEdit()
	w.AddEdit(URI("file:///a.go"), TextEdit{NewText: "1"})
	w.AddEdit(URI("file:///a.go"), TextEdit{NewText: "2"})
	w.AddEdit(URI("file:///b.go"), TextEdit{NewText: "3"})
	assert.Equal(t, 3, w.EditCount())
}
