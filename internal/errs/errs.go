// Package errs defines the unified error-kind taxonomy shared by the
// planner, executor, LSP supervisor, and MCP dispatcher, along with the
// JSON-RPC error-code mapping used at the transport boundary.
package errs

import "fmt"

// Kind enumerates the recoverable and terminal error categories the core
// can produce. Kinds map 1:1 onto the table in the error handling design.
type Kind string

const (
	InvalidArgs           Kind = "InvalidArgs"
	ToolNotFound          Kind = "ToolNotFound"
	Cancelled             Kind = "Cancelled"
	CapabilityUnavailable Kind = "CapabilityUnavailable"
	AmbiguousTarget       Kind = "AmbiguousTarget"
	StalePlan             Kind = "StalePlan"
	PathTraversal         Kind = "PathTraversal"
	NonUtf8Content        Kind = "NonUtf8Content"
	PlanTooLarge          Kind = "PlanTooLarge"
	ServerNotReady        Kind = "ServerNotReady"
	ServerUnavailable     Kind = "ServerUnavailable"
	LspRequestFailed      Kind = "LspRequestFailed"
	ApplyFailed           Kind = "ApplyFailed"
	InternalError         Kind = "InternalError"
)

// jsonRPCCodes holds the wire codes spec'd explicitly; kinds not listed
// here are surfaced as application errors in the -32000 range, using the
// fixed per-kind codes in fallbackCodes.
var jsonRPCCodes = map[Kind]int{
	InvalidArgs:   -32602,
	ToolNotFound:  -32601,
	Cancelled:     -32800,
	InternalError: -32603,
}

// fallbackCodes assigns a stable application-defined code (the -32000 to
// -32099 "server error" band reserved by JSON-RPC 2.0) to kinds that have
// no code fixed by the spec table.
var fallbackCodes = map[Kind]int{
	CapabilityUnavailable: -32001,
	AmbiguousTarget:       -32002,
	StalePlan:             -32003,
	PathTraversal:         -32004,
	NonUtf8Content:        -32005,
	PlanTooLarge:          -32006,
	ServerNotReady:        -32007,
	ServerUnavailable:     -32008,
	LspRequestFailed:      -32009,
	ApplyFailed:           -32010,
}

// Error is the concrete error type returned by core components. It
// carries a Kind for programmatic dispatch plus arbitrary structured
// detail (e.g. the offending URI, ambiguous candidates) rendered into
// the message and optionally available to callers via Detail.
type Error struct {
	Kind    Kind
	Message string
	Detail  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the mapped kind for programmatic inspection.
func (e *Error) Code() Kind { return e.Kind }

// JSONRPCCode returns the wire error.code to use for this error.
func (e *Error) JSONRPCCode() int {
	if code, ok := jsonRPCCodes[e.Kind]; ok {
		return code
	}
	if code, ok := fallbackCodes[e.Kind]; ok {
		return code
	}
	return -32000
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause,
// preserving it for errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetail attaches structured detail fields and returns the receiver
// for chaining at the construction site.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var target *Error
	if errorAs(err, &target) {
		return target, true
	}
	return nil, false
}

// errorAs walks err's single-cause Unwrap chain by hand, stopping at the
// first *Error; errors joined through Unwrap() []error are not searched.
func errorAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
