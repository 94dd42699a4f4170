package mcp

import (
	"encoding/json"
	"testing"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgsMissingRequired(t *testing.T) {
	_, err := ValidateArgs(json.RawMessage(`{}`), []ArgSpec{
		{Name: "file", Required: true, Kind: ArgString},
	})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidArgs, e.Kind)
}

func TestValidateArgsWrongType(t *testing.T) {
	_, err := ValidateArgs(json.RawMessage(`{"file": 5}`), []ArgSpec{
		{Name: "file", Required: true, Kind: ArgString},
	})
	require.Error(t, err)
}

func TestValidateArgsEmptyString(t *testing.T) {
	_, err := ValidateArgs(json.RawMessage(`{"file": ""}`), []ArgSpec{
		{Name: "file", Required: true, Kind: ArgString},
	})
	require.Error(t, err)
}

func TestValidateArgsNegativeNumber(t *testing.T) {
	_, err := ValidateArgs(json.RawMessage(`{"depth": -1}`), []ArgSpec{
		{Name: "depth", Kind: ArgNumber},
	})
	require.Error(t, err)
}

func TestValidateArgsPathTraversal(t *testing.T) {
	_, err := ValidateArgs(json.RawMessage(`{"file": "../../etc/passwd"}`), []ArgSpec{
		{Name: "file", Required: true, Kind: ArgString, IsPath: true},
	})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.PathTraversal, e.Kind)
}

func TestValidateArgsOkPath(t *testing.T) {
	fields, err := ValidateArgs(json.RawMessage(`{"file": "pkg/foo.go"}`), []ArgSpec{
		{Name: "file", Required: true, Kind: ArgString, IsPath: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "pkg/foo.go", fields["file"])
}

func TestValidateArgsOptionalFieldAbsent(t *testing.T) {
	fields, err := ValidateArgs(json.RawMessage(`{}`), []ArgSpec{
		{Name: "includeDeclaration", Kind: ArgBool},
	})
	require.NoError(t, err)
	assert.Nil(t, fields["includeDeclaration"])
}

func TestValidateArgsEmptyRawDefaultsToObject(t *testing.T) {
	fields, err := ValidateArgs(nil, []ArgSpec{
		{Name: "file", Kind: ArgString},
	})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestCommonOptionsFieldDefaults(t *testing.T) {
	opts := CommonOptionsField(map[string]any{})
	assert.Equal(t, DefaultCommonOptions(), opts)
}

func TestCommonOptionsFieldOverrides(t *testing.T) {
	fields := map[string]any{
		"options": map[string]any{
			"dryRun":            false,
			"validateChecksums": false,
			"createBackup":      true,
			"scope":             "workspace",
		},
	}
	opts := CommonOptionsField(fields)
	assert.False(t, opts.DryRun)
	assert.False(t, opts.ValidateChecksums)
	assert.True(t, opts.CreateBackup)
	assert.Equal(t, "workspace", opts.Scope)
}

func TestPositionField(t *testing.T) {
	fields := map[string]any{
		"position": map[string]any{"line": float64(3), "character": float64(7)},
	}
	line, char, ok := PositionField(fields, "position")
	require.True(t, ok)
	assert.Equal(t, uint32(3), line)
	assert.Equal(t, uint32(7), char)

	_, _, ok = PositionField(fields, "missing")
	assert.False(t, ok)
}

func TestStringSliceFieldSkipsNonStrings(t *testing.T) {
	fields := map[string]any{"names": []any{"a", 1, "b", true}}
	assert.Equal(t, []string{"a", "b"}, StringSliceField(fields, "names"))
}
