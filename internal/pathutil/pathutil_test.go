package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)

	_, err = r.Resolve("../../etc/passwd")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.PathTraversal, e.Kind)
}

func TestResolveJoinsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)

	got, err := r.Resolve("src/foo.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.Root(), "src", "foo.go"), got)
}

func TestRelativeToRootUsesForwardSlashes(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)

	rel, err := r.RelativeToRoot(filepath.Join(dir, "a", "b.go"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.go", rel)
}

func TestToURIFromURIRoundTrip(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "foo.go")
	uri := ToURI(abs)
	assert.Contains(t, uri, "file://")

	back, err := FromURI(uri)
	require.NoError(t, err)
	assert.Equal(t, abs, back)
}

func TestFromURIRejectsNonFileURI(t *testing.T) {
	_, err := FromURI("not-a-uri")
	require.Error(t, err)
}

func TestResolveSymlinkReportsRealTargetOnly(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	real, isLink, err := ResolveSymlink(target)
	require.NoError(t, err)
	assert.False(t, isLink)
	assert.Equal(t, target, real)

	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))
	real, isLink, err = ResolveSymlink(link)
	require.NoError(t, err)
	assert.True(t, isLink)
	assert.Equal(t, target, real)
}

func TestIsIgnoredDir(t *testing.T) {
	assert.True(t, IsIgnoredDir(".git"))
	assert.True(t, IsIgnoredDir("node_modules"))
	assert.True(t, IsIgnoredDir("vendor"))
	assert.False(t, IsIgnoredDir("internal"))
}
