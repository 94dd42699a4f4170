package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/plugin"
	"github.com/lexcodex/devbridge/internal/plugin/tsplugin"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, dir string) *Context {
	t.Helper()
	resolver, err := pathutil.NewResolver(dir)
	require.NoError(t, err)
	registry := plugin.NewRegistry()
	registry.Register(tsplugin.New())
	return New(resolver, registry, nil)
}

func writePlannerFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// RenameFile must retarget importer.ts's relative import once bar.ts
// moves, exercising rewriteImportersOfFile/RewriteFileReferences with a
// real importerPath end to end (the threading the maintainer review
// flagged as broken).
func TestRenameFileRewritesRelativeImporters(t *testing.T) {
	dir := t.TempDir()
	writePlannerFile(t, dir, "src/utils/bar.ts", "export function bar() {}\n")
	writePlannerFile(t, dir, "src/foo.ts", `import { bar } from "./utils/bar"
`)

	c := newTestContext(t, dir)
	plan, err := c.RenameFile(context.Background(), "src/utils/bar.ts", "src/lib/bar.ts")
	require.NoError(t, err)

	fooURI := proto.URI(pathutil.ToURI(filepath.Join(dir, "src/foo.ts")))
	edits := plan.Edit.Changes[fooURI]
	require.Len(t, edits, 1)
	assert.Equal(t, "./lib/bar", edits[0].NewText)

	require.Len(t, plan.Edit.FileOps, 1)
	assert.Equal(t, proto.FileOpRename, plan.Edit.FileOps[0].Kind)
}

func TestRenameFileRejectsMissingSource(t *testing.T) {
	dir := t.TempDir()
	c := newTestContext(t, dir)
	_, err := c.RenameFile(context.Background(), "missing.ts", "dest.ts")
	require.Error(t, err)
}

func TestRenameFileRejectsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	writePlannerFile(t, dir, "a.ts", "export const a = 1\n")
	writePlannerFile(t, dir, "b.ts", "export const b = 2\n")

	c := newTestContext(t, dir)
	_, err := c.RenameFile(context.Background(), "a.ts", "b.ts")
	require.Error(t, err)
}

func TestRenameFileWarnsOnCrossLanguageExtensionChange(t *testing.T) {
	dir := t.TempDir()
	writePlannerFile(t, dir, "a.ts", "export const a = 1\n")

	c := newTestContext(t, dir)
	plan, err := c.RenameFile(context.Background(), "a.ts", "a.go")
	require.NoError(t, err)
	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, "CrossLanguageRename", plan.Warnings[0].Code)
}
