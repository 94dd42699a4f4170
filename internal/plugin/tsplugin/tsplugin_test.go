package tsplugin

import (
	"context"
	"testing"

	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbolsFindsExportedDeclarations(t *testing.T) {
	p := New()
	src := []byte("export function greet() {}\nexport class Widget {}\nexport const LIMIT = 10\n")
	syms, err := p.ParseSymbols(context.Background(), src, "file:///a.ts")
	require.NoError(t, err)
	require.Len(t, syms, 3)
	assert.Equal(t, "greet", syms[0].Name)
	assert.Equal(t, proto.SymbolFunction, syms[0].Kind)
	assert.Equal(t, "Widget", syms[1].Name)
	assert.Equal(t, proto.SymbolClass, syms[1].Kind)
	assert.Equal(t, "LIMIT", syms[2].Name)
	assert.Equal(t, proto.SymbolConstant, syms[2].Kind)
}

func TestAnalyzeImportsParsesNamedDefaultAndNamespace(t *testing.T) {
	p := New()
	src := []byte(`import React, { useState, useEffect as fx } from "react"
import * as path from "path"
import "./side-effect"
`)
	imports, err := p.AnalyzeImports(context.Background(), src, "file:///a.ts")
	require.NoError(t, err)
	require.Len(t, imports, 3)

	assert.Equal(t, "react", imports[0].ModulePath)
	assert.Equal(t, "React", imports[0].DefaultImport)
	assert.Equal(t, []string{"useState", "fx"}, imports[0].NamedImports)

	assert.Equal(t, "path", imports[1].ModulePath)
	assert.Equal(t, "path", imports[1].NamespaceImport)

	assert.Equal(t, "./side-effect", imports[2].ModulePath)
}

func TestCalculateRelativeImportStripsExtensionAndPrefixesDot(t *testing.T) {
	p := New()
	spec, err := p.CalculateRelativeImport("/project/src/foo.ts", "/project/utils/bar.ts")
	require.NoError(t, err)
	assert.Equal(t, "../utils/bar", spec)
}

// This is the importer-path threading the maintainer review flagged:
// RewriteFileReferences must resolve the relative specifier against the
// importer's own directory (importerPath), not against oldURI's, or a
// relative import a file moved away from never matches.
func TestRewriteFileReferencesRetargetsRelativeImport(t *testing.T) {
	p := New()
	content := []byte(`import { helper } from "../utils/bar"
`)
	oldURI := proto.URI("file:///project/utils/bar.ts")
	newURI := proto.URI("file:///project/lib/bar.ts")
	importerPath := "/project/src/foo.ts"

	edits, err := p.RewriteFileReferences(context.Background(), content, oldURI, newURI, importerPath)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "../lib/bar", edits[0].NewText)
}

func TestRewriteFileReferencesNoMatchForUnrelatedImporter(t *testing.T) {
	p := New()
	content := []byte(`import { helper } from "../other/thing"
`)
	oldURI := proto.URI("file:///project/utils/bar.ts")
	newURI := proto.URI("file:///project/lib/bar.ts")
	importerPath := "/project/src/foo.ts"

	edits, err := p.RewriteFileReferences(context.Background(), content, oldURI, newURI, importerPath)
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestRewriteModuleReferencesSwapsPrefix(t *testing.T) {
	p := New()
	content := []byte(`import { widget } from "@acme/old-pkg/widget"
`)
	edits, err := p.RewriteModuleReferences(context.Background(), content, "@acme/old-pkg", "@acme/new-pkg")
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "@acme/new-pkg/widget", edits[0].NewText)
}
