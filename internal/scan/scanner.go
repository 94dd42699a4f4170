// Package scan implements the project file walker shared by every
// planner (spec §4.5 "Common context"): respects .gitignore by default,
// never descends into .git, common build-output directories, or
// symlinks leaving the project root. Grounded on the gitignore-matching
// pattern in bennypowers-cem's lsp/methods/textDocument/references
// package and its doublestar-based glob matching in workspace/local.go.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/lexcodex/devbridge/internal/pathutil"
)

// Scanner walks a project tree honoring .gitignore and the built-in
// ignored-directory list.
type Scanner struct {
	resolver *pathutil.Resolver
	matcher  *ignore.GitIgnore
}

// NewScanner builds a Scanner rooted at resolver.Root(), loading
// .gitignore from the project root if present. A missing .gitignore is
// not an error — every file is then considered tracked.
func NewScanner(resolver *pathutil.Resolver) *Scanner {
	s := &Scanner{resolver: resolver}
	data, err := os.ReadFile(filepath.Join(resolver.Root(), ".gitignore"))
	if err == nil {
		s.matcher = ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
	}
	return s
}

// Walk invokes fn with the canonical absolute path of every tracked
// regular file under the project root, skipping ignored directories,
// .gitignore matches, and symlinks that resolve outside the root.
func (s *Scanner) Walk(fn func(path string) error) error {
	root := s.resolver.Root()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if pathutil.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			if s.matcher != nil && s.matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			real, _, err := pathutil.ResolveSymlink(path)
			if err != nil {
				return nil // broken symlink, skip rather than fail the whole walk
			}
			if _, err := s.resolver.Resolve(real); err != nil {
				return nil // target escapes the project root
			}
		}

		if s.matcher != nil && s.matcher.MatchesPath(rel) {
			return nil
		}

		return fn(path)
	})
}

// MatchesGlobs reports whether relPath (project-root-relative, forward
// slashes) satisfies includeGlobs (any match, empty means match-all) and
// none of excludeGlobs.
func MatchesGlobs(relPath string, includeGlobs, excludeGlobs []string) (bool, error) {
	if len(includeGlobs) > 0 {
		matched := false
		for _, g := range includeGlobs {
			ok, err := doublestar.Match(g, relPath)
			if err != nil {
				return false, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	for _, g := range excludeGlobs {
		ok, err := doublestar.Match(g, relPath)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}
