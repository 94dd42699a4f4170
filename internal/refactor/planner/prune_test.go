package planner

import (
	"context"
	"testing"

	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteFileWarnsWhenImportersRemain(t *testing.T) {
	dir := t.TempDir()
	writePlannerFile(t, dir, "src/utils/bar.ts", "export function bar() {}\n")
	writePlannerFile(t, dir, "src/foo.ts", `import { bar } from "./utils/bar"
`)

	c := newTestContext(t, dir)
	plan, err := c.DeleteFile(context.Background(), "src/utils/bar.ts")
	require.NoError(t, err)

	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, "DeadImportsRemain", plan.Warnings[0].Code)
	require.Len(t, plan.Edit.FileOps, 1)
	assert.Equal(t, proto.FileOpDelete, plan.Edit.FileOps[0].Kind)
}

func TestDeleteFileNoWarningWithoutImporters(t *testing.T) {
	dir := t.TempDir()
	writePlannerFile(t, dir, "src/orphan.ts", "export const x = 1\n")

	c := newTestContext(t, dir)
	plan, err := c.DeleteFile(context.Background(), "src/orphan.ts")
	require.NoError(t, err)
	assert.Empty(t, plan.Warnings)
}

func TestDeleteFileSkipsImportAnalysisForUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	writePlannerFile(t, dir, "notes.txt", "just some text\n")

	c := newTestContext(t, dir)
	plan, err := c.DeleteFile(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Empty(t, plan.Warnings)
}

func TestFindImportersOfMatchesRelativeSpecifier(t *testing.T) {
	dir := t.TempDir()
	target := writePlannerFile(t, dir, "src/utils/bar.ts", "export function bar() {}\n")
	writePlannerFile(t, dir, "src/foo.ts", `import { bar } from "./utils/bar"
`)
	writePlannerFile(t, dir, "src/unrelated.ts", `export const z = 1
`)

	c := newTestContext(t, dir)
	importers, err := c.findImportersOf(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, importers, 1)
	assert.Contains(t, importers[0], "foo.ts")
}
