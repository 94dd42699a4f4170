// Package pathutil resolves project-relative paths, guards against path
// traversal, and round-trips file:// URIs. It supersedes the teacher's
// hand-rolled pathToURI/uriToPath pair (tools/lsp_process_client.go) with
// go.lsp.dev/uri, the pack's dedicated URI library.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexcodex/devbridge/internal/errs"
	lspuri "go.lsp.dev/uri"
)

// Resolver resolves paths against a fixed project root, rejecting any
// resolution that would escape it.
type Resolver struct {
	root string
}

// NewResolver builds a Resolver rooted at root, made absolute and, where
// it exists, resolved through symlinks; a relative root is taken against
// the current working directory.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The root may not exist yet in tests; fall back to the cleaned
		// absolute path rather than failing construction.
		real = filepath.Clean(abs)
	}
	return &Resolver{root: real}, nil
}

// Root returns the canonical project root.
func (r *Resolver) Root() string { return r.root }

// Resolve turns a project-relative or absolute path into a canonical
// absolute path under the project root. It returns PathTraversal if the
// result would fall outside the root.
func (r *Resolver) Resolve(p string) (string, error) {
	var abs string
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Join(r.root, p)
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.New(errs.PathTraversal, "path %q escapes project root %q", p, r.root).
			WithDetail("path", p)
	}
	return abs, nil
}

// RelativeToRoot returns p expressed relative to the project root, using
// forward slashes regardless of host OS (matching import-path rendering
// conventions used by the bundled plugins).
func (r *Resolver) RelativeToRoot(p string) (string, error) {
	abs, err := r.Resolve(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// ToURI converts an absolute filesystem path into a file:// URI string.
func ToURI(path string) string {
	return string(lspuri.File(path))
}

// FromURI converts a file:// URI string into an absolute filesystem path.
func FromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return "", fmt.Errorf("not a file URI: %s", uri)
	}
	u := lspuri.URI(uri)
	path := u.Filename()
	if path == "" {
		return "", fmt.Errorf("not a file URI: %s", uri)
	}
	return path, nil
}

// ResolveSymlink resolves path if it is a symlink, returning the real
// target path and true, or the original path and false otherwise. The
// executor uses this to write through symlinks without replacing them
// (spec §4.6 "Symlink policy").
func ResolveSymlink(path string) (real string, isLink bool, err error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, false, nil
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", true, err
	}
	return target, true, nil
}

// IsIgnoredDir reports whether dirName should never be descended into by
// a project walk, regardless of .gitignore contents: version control
// metadata and the handful of build-output directory names the spec
// calls out explicitly.
func IsIgnoredDir(dirName string) bool {
	switch dirName {
	case ".git", "node_modules", "dist", "build", "target", "vendor", ".devbridge":
		return true
	default:
		return false
	}
}
