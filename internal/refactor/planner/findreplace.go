package planner

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/proto"
	"github.com/lexcodex/devbridge/internal/refactor"
	"github.com/lexcodex/devbridge/internal/scan"
)

const findReplaceMatchCap = 10000

// FindReplaceOptions mirrors spec §4.5.4's options bag.
type FindReplaceOptions struct {
	Regex        bool
	WholeWord    bool
	PreserveCase bool
	IncludeGlobs []string
	ExcludeGlobs []string
}

// FindReplace streams the project respecting globs and ignore rules,
// collecting one TextEdit per match, and fails with PlanTooLarge above
// the match-count safety cap (spec §4.5.4; the spec's prose names this
// case "TooManyMatches", which this module treats as an instance of the
// general PlanTooLarge kind — see DESIGN.md).
func (c *Context) FindReplace(ctx context.Context, pattern, replacement string, opts FindReplaceOptions) (*refactor.Plan, error) {
	re, err := compileFindPattern(pattern, opts.Regex, opts.WholeWord)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgs, err, "compile pattern %q", pattern)
	}

	plan := refactor.New(refactor.PlanFindReplace)
	plan.Metadata["pattern"] = pattern
	plan.Metadata["replacement"] = replacement
	matchCount := 0

	err = c.Scanner.Walk(func(path string) error {
		rel, relErr := c.Resolver.RelativeToRoot(path)
		if relErr != nil {
			return relErr
		}
		ok, err := globOK(rel, opts.IncludeGlobs, opts.ExcludeGlobs)
		if err != nil {
			return errs.Wrap(errs.InvalidArgs, err, "match glob against %s", rel)
		}
		if !ok {
			return nil
		}

		content, err := readFile(path)
		if err != nil {
			return errs.Wrap(errs.InvalidArgs, err, "read %s", path)
		}
		if !isLikelyText(content) {
			return nil
		}

		lines := strings.Split(string(content), "\n")
		var fileEdits []proto.TextEdit
		for i, line := range lines {
			locs := re.FindAllStringIndex(line, -1)
			for _, loc := range locs {
				matchCount++
				if matchCount > findReplaceMatchCap {
					return errs.New(errs.PlanTooLarge, "find/replace exceeded %d matches; narrow include/exclude globs or pattern", findReplaceMatchCap)
				}
				matched := line[loc[0]:loc[1]]
				repl := replacement
				if opts.PreserveCase {
					repl = matchCase(matched, replacement)
				}
				fileEdits = append(fileEdits, proto.TextEdit{
					Range: proto.Range{
						Start: proto.Position{Line: uint32(i), Character: uint32(len([]rune(line[:loc[0]])))},
						End:   proto.Position{Line: uint32(i), Character: uint32(len([]rune(line[:loc[1]])))},
					},
					NewText: repl,
				})
			}
		}
		if len(fileEdits) == 0 {
			return nil
		}
		uri := proto.URI(pathutil.ToURI(path))
		plan.RecordChecksum(uri, content)
		for _, e := range fileEdits {
			plan.Edit.AddEdit(uri, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func compileFindPattern(pattern string, isRegex, wholeWord bool) (*regexp.Regexp, error) {
	expr := pattern
	if !isRegex {
		expr = regexp.QuoteMeta(pattern)
	}
	if wholeWord {
		expr = `\b` + expr + `\b`
	}
	return regexp.Compile(expr)
}

func globOK(rel string, include, exclude []string) (bool, error) {
	return scan.MatchesGlobs(rel, include, exclude)
}

// matchCase applies the capitalization pattern observed in matched onto
// replacement: all-upper, all-lower, or title-case; anything else is
// passed through unchanged.
func matchCase(matched, replacement string) string {
	switch {
	case matched == strings.ToUpper(matched) && matched != strings.ToLower(matched):
		return strings.ToUpper(replacement)
	case matched == strings.ToLower(matched):
		return strings.ToLower(replacement)
	case isTitleCase(matched):
		return titleCase(replacement)
	default:
		return replacement
	}
}

func isTitleCase(s string) bool {
	r := []rune(s)
	if len(r) == 0 {
		return false
	}
	return unicode.IsUpper(r[0])
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// isLikelyText rejects binary content using the same null-byte heuristic
// git and most text tools use, so find/replace never corrupts binaries.
func isLikelyText(content []byte) bool {
	limit := len(content)
	if limit > 8192 {
		limit = 8192
	}
	for _, b := range content[:limit] {
		if b == 0 {
			return false
		}
	}
	return true
}
