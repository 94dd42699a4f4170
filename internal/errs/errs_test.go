package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatsMessage(t *testing.T) {
	e := New(InvalidArgs, "bad %s at %d", "thing", 3)
	assert.Equal(t, "InvalidArgs: bad thing at 3", e.Error())
	assert.Equal(t, InvalidArgs, e.Code())
}

func TestErrorWithNoMessageRendersKindOnly(t *testing.T) {
	e := &Error{Kind: ServerNotReady}
	assert.Equal(t, "ServerNotReady", e.Error())
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	e := Wrap(ApplyFailed, cause, "commit failed")
	assert.Equal(t, cause, errors.Unwrap(e))
	assert.True(t, errors.Is(e, cause))
}

func TestWithDetailAttachesStructuredFields(t *testing.T) {
	e := New(PathTraversal, "escaped root").WithDetail("path", "../etc").WithDetail("root", "/proj")
	assert.Equal(t, "../etc", e.Detail["path"])
	assert.Equal(t, "/proj", e.Detail["root"])
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	inner := New(StalePlan, "checksum mismatch")
	outer := fmt.Errorf("apply: %w", inner)

	got, ok := As(outer)
	require.True(t, ok)
	assert.Equal(t, StalePlan, got.Kind)
}

func TestAsReturnsFalseForPlainErrors(t *testing.T) {
	_, ok := As(errors.New("not one of ours"))
	assert.False(t, ok)
}

func TestJSONRPCCodeUsesSpecTableThenFallbackThenGeneric(t *testing.T) {
	assert.Equal(t, -32602, New(InvalidArgs, "").JSONRPCCode())
	assert.Equal(t, -32003, New(StalePlan, "").JSONRPCCode())
	assert.Equal(t, -32000, (&Error{Kind: Kind("Unmapped")}).JSONRPCCode())
}
