package mcp

import (
	"encoding/json"
	"strings"

	"github.com/lexcodex/devbridge/internal/errs"
)

// ArgSpec describes one expected field of a tool's arguments object for
// the whitelist validation pass required by spec §4.7: required fields
// present, types correct, strings non-empty, numbers non-negative, paths
// project-relative or absolute-under-root.
type ArgSpec struct {
	Name     string
	Required bool
	Kind     ArgKind
	IsPath   bool
}

// ArgKind enumerates the JSON value shapes ArgSpec checks for.
type ArgKind int

const (
	ArgString ArgKind = iota
	ArgNumber
	ArgBool
	ArgObject
	ArgArray
)

// ValidateArgs decodes raw as a JSON object and checks it against specs,
// returning the decoded map for handlers to pull typed fields from, or
// an InvalidArgs error describing the first violation found.
func ValidateArgs(raw json.RawMessage, specs []ArgSpec) (map[string]any, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "arguments must be a JSON object")
	}
	for _, spec := range specs {
		v, present := fields[spec.Name]
		if !present || v == nil {
			if spec.Required {
				return nil, errs.New(errs.InvalidArgs, "missing required argument %q", spec.Name).
					WithDetail("argument", spec.Name)
			}
			continue
		}
		if err := checkKind(spec, v); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func checkKind(spec ArgSpec, v any) error {
	switch spec.Kind {
	case ArgString:
		s, ok := v.(string)
		if !ok {
			return errs.New(errs.InvalidArgs, "argument %q must be a string", spec.Name).WithDetail("argument", spec.Name)
		}
		if s == "" {
			return errs.New(errs.InvalidArgs, "argument %q must not be empty", spec.Name).WithDetail("argument", spec.Name)
		}
		if spec.IsPath {
			return checkPathArg(spec.Name, s)
		}
	case ArgNumber:
		n, ok := v.(float64)
		if !ok {
			return errs.New(errs.InvalidArgs, "argument %q must be a number", spec.Name).WithDetail("argument", spec.Name)
		}
		if n < 0 {
			return errs.New(errs.InvalidArgs, "argument %q must not be negative", spec.Name).WithDetail("argument", spec.Name)
		}
	case ArgBool:
		if _, ok := v.(bool); !ok {
			return errs.New(errs.InvalidArgs, "argument %q must be a boolean", spec.Name).WithDetail("argument", spec.Name)
		}
	case ArgObject:
		if _, ok := v.(map[string]any); !ok {
			return errs.New(errs.InvalidArgs, "argument %q must be an object", spec.Name).WithDetail("argument", spec.Name)
		}
	case ArgArray:
		if _, ok := v.([]any); !ok {
			return errs.New(errs.InvalidArgs, "argument %q must be an array", spec.Name).WithDetail("argument", spec.Name)
		}
	}
	return nil
}

// checkPathArg rejects the lexical traversal patterns that let a path
// argument escape the project root before it ever reaches
// pathutil.Resolver — the resolver re-checks this against the real
// filesystem, but rejecting it here means a traversal attempt never
// triggers an LSP call or a file read.
func checkPathArg(name, p string) error {
	if strings.HasPrefix(p, "..") || strings.Contains(p, "/../") || strings.Contains(p, `\..\`) {
		return errs.New(errs.PathTraversal, "argument %q escapes the project root", name).WithDetail("argument", name).WithDetail("path", p)
	}
	return nil
}

// StringField reads a required or already-validated string field.
func StringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

// StringFieldDefault reads an optional string field, returning def when
// absent.
func StringFieldDefault(fields map[string]any, name, def string) string {
	if s, ok := fields[name].(string); ok && s != "" {
		return s
	}
	return def
}

// BoolFieldDefault reads an optional bool field, returning def when
// absent.
func BoolFieldDefault(fields map[string]any, name string, def bool) bool {
	if b, ok := fields[name].(bool); ok {
		return b
	}
	return def
}

// NumberFieldDefault reads an optional numeric field, returning def when
// absent.
func NumberFieldDefault(fields map[string]any, name string, def float64) float64 {
	if n, ok := fields[name].(float64); ok {
		return n
	}
	return def
}

// StringSliceField reads an optional array-of-strings field, skipping
// any non-string elements rather than failing the whole call.
func StringSliceField(fields map[string]any, name string) []string {
	raw, ok := fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CommonOptionsField decodes the options sub-object shared by every
// refactoring tool, applying spec §6's defaults for any field the caller
// omitted.
func CommonOptionsField(fields map[string]any) CommonOptions {
	opts := DefaultCommonOptions()
	raw, ok := fields["options"].(map[string]any)
	if !ok {
		return opts
	}
	if v, ok := raw["dryRun"].(bool); ok {
		opts.DryRun = v
	}
	if v, ok := raw["validateChecksums"].(bool); ok {
		opts.ValidateChecksums = v
	}
	if v, ok := raw["createBackup"].(bool); ok {
		opts.CreateBackup = v
	}
	if v, ok := raw["scope"].(string); ok {
		opts.Scope = v
	}
	return opts
}

// PositionField decodes a {line, character} object field into a
// proto.Position-shaped pair, returning ok=false if the field is missing
// or malformed.
func PositionField(fields map[string]any, name string) (line, character uint32, ok bool) {
	raw, present := fields[name].(map[string]any)
	if !present {
		return 0, 0, false
	}
	l, lok := raw["line"].(float64)
	c, cok := raw["character"].(float64)
	if !lok || !cok {
		return 0, 0, false
	}
	return uint32(l), uint32(c), true
}
