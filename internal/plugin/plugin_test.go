package plugin

import (
	"context"
	"testing"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlugin implements Plugin plus ImportAnalyzer only, to exercise the
// capability-miss path of WithCapability distinctly from the
// extension-miss path.
type fakePlugin struct{}

func (fakePlugin) Name() string         { return "fake" }
func (fakePlugin) Extensions() []string { return []string{".fk"} }
func (fakePlugin) AnalyzeImports(ctx context.Context, source []byte, uri proto.URI) ([]proto.Import, error) {
	return nil, nil
}

func TestRegistryLookupAndExtensions(t *testing.T) {
	r := NewRegistry()
	r.Register(fakePlugin{})

	p, ok := r.Lookup(".fk")
	require.True(t, ok)
	assert.Equal(t, "fake", p.Name())

	_, ok = r.Lookup(".nope")
	assert.False(t, ok)

	assert.Equal(t, []string{".fk"}, r.Extensions())
}

func TestRegisterLastWriteWinsPerExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(fakePlugin{})
	second := fakePlugin{}
	r.Register(second)

	p, ok := r.Lookup(".fk")
	require.True(t, ok)
	assert.Equal(t, second, p)
}

func TestWithCapabilityMissingExtension(t *testing.T) {
	r := NewRegistry()
	_, err := WithCapability[ImportAnalyzer](r, ".missing", CapImportAnalyzer, "file:///a.go")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.CapabilityUnavailable, e.Kind)
}

func TestWithCapabilityUnsupportedTrait(t *testing.T) {
	r := NewRegistry()
	r.Register(fakePlugin{})
	_, err := WithCapability[SymbolParser](r, ".fk", CapSymbolParser, "file:///a.fk")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.CapabilityUnavailable, e.Kind)
}

func TestWithCapabilitySucceeds(t *testing.T) {
	r := NewRegistry()
	r.Register(fakePlugin{})
	analyzer, err := WithCapability[ImportAnalyzer](r, ".fk", CapImportAnalyzer, "file:///a.fk")
	require.NoError(t, err)
	imports, err := analyzer.AnalyzeImports(context.Background(), nil, "file:///a.fk")
	require.NoError(t, err)
	assert.Nil(t, imports)
}

func TestDescribeListsEveryRegisteredPlugin(t *testing.T) {
	r := NewRegistry()
	r.Register(fakePlugin{})
	assert.Equal(t, "fake[.fk]", r.Describe())
}
