package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Property tests for apply invariants 1, 2, 5, 6, 7, 9 and 10 of spec §8
// "Testable properties". TestApply* in executor_test.go already exercises some of
// these incidentally (stale checksum, dry run); the tests here name the
// invariant directly so a regression points back at the clause it broke.

// Invariant 1: for every successful apply, the post-apply content of each
// touched URI equals the result of applying the plan's edits, in reverse
// document order, to the pre-apply content.
func TestInvariant1_EditsApplyInReverseDocumentOrder(t *testing.T) {
	ex, dir := newTestExecutor(t)
	path, uri := writeTestFile(t, dir, "multi.go", "first\nsecond\nthird\n")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	plan := New(PlanRename)
	plan.RecordChecksum(uri, content)
	// Two edits on different lines of the same file; the executor must
	// sort and apply these back-to-front so the first edit's range isn't
	// invalidated by the second's.
	plan.Edit.AddEdit(uri, proto.TextEdit{
		Range:   proto.Range{Start: proto.Position{Line: 0, Character: 0}, End: proto.Position{Line: 0, Character: 5}},
		NewText: "1st",
	})
	plan.Edit.AddEdit(uri, proto.TextEdit{
		Range:   proto.Range{Start: proto.Position{Line: 2, Character: 0}, End: proto.Position{Line: 2, Character: 5}},
		NewText: "3rd",
	})

	result, err := ex.Apply(plan, Options{ValidateChecksums: true})
	require.NoError(t, err)
	assert.Equal(t, "applied", result.Status)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1st\nsecond\n3rd\n", string(got))
}

// Invariant 2: for every failed apply, each pre-image checksum equals the
// post-apply checksum (true rollback) — including files whose text edits
// already committed before a later file operation failed.
func TestInvariant2_FailedApplyRollsBackCommittedEdits(t *testing.T) {
	ex, dir := newTestExecutor(t)
	path, uri := writeTestFile(t, dir, "survives.go", "package survives\n")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	// The create passes validation (nothing exists at blocker/child.go) but
	// fails at commit time, after survives.go's edit is already renamed into
	// place, because blocker is a regular file and cannot become a directory.
	blocker, _ := writeTestFile(t, dir, "blocker", "not a directory\n")
	underFile := proto.URI(pathutil.ToURI(filepath.Join(blocker, "child.go")))

	plan := singleLineReplacePlan(uri, content, "package survives", "package renamed")
	plan.Edit.AddFileOp(proto.FileOp{Kind: proto.FileOpCreate, NewURI: underFile, Content: []byte("package child\n")})

	_, err = ex.Apply(plan, Options{ValidateChecksums: true})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.ApplyFailed, e.Kind)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package survives\n", string(got), "text edit must be rolled back once the file op fails")
	assert.Equal(t, HashContent(content), HashContent(got))
}

// Invariant 5: rename(A -> B) then rename(B -> A) on a workspace with no
// other edits yields byte-identical files.
func TestInvariant5_RenameRoundTripIsByteIdentical(t *testing.T) {
	ex, dir := newTestExecutor(t)
	pathA, uriA := writeTestFile(t, dir, "a.go", "package a\n\nfunc A() {}\n")
	original, err := os.ReadFile(pathA)
	require.NoError(t, err)

	pathB := filepath.Join(dir, "b.go")
	uriB := proto.URI(pathutil.ToURI(pathB))

	forward := New(PlanRename)
	forward.Edit.AddFileOp(proto.FileOp{Kind: proto.FileOpRename, OldURI: uriA, NewURI: uriB})
	_, err = ex.Apply(forward, Options{})
	require.NoError(t, err)
	_, statErr := os.Stat(pathA)
	assert.True(t, os.IsNotExist(statErr))

	backward := New(PlanRename)
	backward.Edit.AddFileOp(proto.FileOp{Kind: proto.FileOpRename, OldURI: uriB, NewURI: uriA})
	_, err = ex.Apply(backward, Options{})
	require.NoError(t, err)

	roundTripped, err := os.ReadFile(pathA)
	require.NoError(t, err)
	assert.Equal(t, original, roundTripped)
}

// Invariant 6: a file edit applied to a symlinked path preserves the
// symlink; the link still points at the same (now modified) target.
func TestInvariant6_EditPreservesSymlink(t *testing.T) {
	ex, dir := newTestExecutor(t)
	realPath, _ := writeTestFile(t, dir, "real.go", "package real\n")

	var before syscall.Stat_t
	require.NoError(t, syscall.Stat(realPath, &before))

	linkPath := filepath.Join(dir, "link.go")
	require.NoError(t, os.Symlink(realPath, linkPath))
	linkURI := proto.URI(pathutil.ToURI(linkPath))

	content, err := os.ReadFile(linkPath)
	require.NoError(t, err)
	plan := singleLineReplacePlan(linkURI, content, "package real", "package renamed")

	_, err = ex.Apply(plan, Options{ValidateChecksums: true})
	require.NoError(t, err)

	info, err := os.Lstat(linkPath)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0, "link.go must still be a symlink")

	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, realPath, target)

	var after syscall.Stat_t
	require.NoError(t, syscall.Stat(realPath, &after))
	assert.Equal(t, before.Ino, after.Ino, "the symlink target's inode must be unchanged")

	got, err := os.ReadFile(realPath)
	require.NoError(t, err)
	assert.Equal(t, "package renamed\n", string(got))
}

// Invariant 7: line endings in the pre-image equal line endings in the
// post-image.
func TestInvariant7_LineEndingsPreserved(t *testing.T) {
	ex, dir := newTestExecutor(t)
	path, uri := writeTestFile(t, dir, "crlf.go", "package foo\r\nfunc X() {}\r\n")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	plan := singleLineReplacePlan(uri, content, "package foo", "package bar")
	_, err = ex.Apply(plan, Options{ValidateChecksums: true})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package bar\r\nfunc X() {}\r\n", string(got))
}

// Invariant 9: two concurrent applies on disjoint file sets both succeed
// and complete without one blocking on the other's lock.
func TestInvariant9_ConcurrentDisjointApplies(t *testing.T) {
	ex, dir := newTestExecutor(t)
	pathA, uriA := writeTestFile(t, dir, "disjoint_a.go", "package a\n")
	pathB, uriB := writeTestFile(t, dir, "disjoint_b.go", "package b\n")
	contentA, err := os.ReadFile(pathA)
	require.NoError(t, err)
	contentB, err := os.ReadFile(pathB)
	require.NoError(t, err)

	planA := singleLineReplacePlan(uriA, contentA, "package a", "package one")
	planB := singleLineReplacePlan(uriB, contentB, "package b", "package two")

	var wg sync.WaitGroup
	errsOut := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errsOut[0] = ex.Apply(planA, Options{ValidateChecksums: true}) }()
	go func() { defer wg.Done(); _, errsOut[1] = ex.Apply(planB, Options{ValidateChecksums: true}) }()
	wg.Wait()

	require.NoError(t, errsOut[0])
	require.NoError(t, errsOut[1])

	gotA, _ := os.ReadFile(pathA)
	gotB, _ := os.ReadFile(pathB)
	assert.Equal(t, "package one\n", string(gotA))
	assert.Equal(t, "package two\n", string(gotB))
}

// Invariant 10: two concurrent applies on overlapping files are
// serialized — the second sees the first's effects as its pre-image, or
// returns StalePlan. Both plans here are built against the same original
// checksum, so whichever commits first invalidates the other.
func TestInvariant10_ConcurrentOverlappingAppliesSerialize(t *testing.T) {
	ex, dir := newTestExecutor(t)
	path, uri := writeTestFile(t, dir, "contended.go", "package contended\n")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	planOne := singleLineReplacePlan(uri, content, "package contended", "package one")
	planTwo := singleLineReplacePlan(uri, content, "package contended", "package two")

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, results[0] = ex.Apply(planOne, Options{ValidateChecksums: true}) }()
	go func() { defer wg.Done(); _, results[1] = ex.Apply(planTwo, Options{ValidateChecksums: true}) }()
	wg.Wait()

	succeeded, staleRejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			e, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, errs.StalePlan, e.Kind)
			staleRejected++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent writer to the same file should commit")
	assert.Equal(t, 1, staleRejected, "the loser must see StalePlan rather than silently overwriting")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, string(got) == "package one\n" || string(got) == "package two\n", fmt.Sprintf("unexpected content %q", got))
}
