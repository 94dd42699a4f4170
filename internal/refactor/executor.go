package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lexcodex/devbridge/internal/errs"
	"github.com/lexcodex/devbridge/internal/observability"
	"github.com/lexcodex/devbridge/internal/pathutil"
	"github.com/lexcodex/devbridge/internal/proto"
)

const (
	maxEditableFileBytes = 64 << 20 // spec §4.6 "Safety caps"
	maxEditsPerPlan      = 10000
)

// Options controls one Apply call (spec §4.6 "apply_options").
type Options struct {
	DryRun            bool
	ValidateChecksums bool
	CreateBackup      bool
}

// DefaultOptions returns the spec's defaults: checksum validation on,
// no backup files, not a dry run.
func DefaultOptions() Options {
	return Options{ValidateChecksums: true}
}

// ApplyResult is returned on success: the set of files actually modified
// and the file operations that were committed.
type ApplyResult struct {
	Status       string      `json:"status"`
	ModifiedURIs []proto.URI `json:"modifiedUris"`
	FileOps      []proto.FileOp `json:"fileOperations,omitempty"`
	Warnings     []Warning   `json:"warnings,omitempty"`
}

// ResyncFunc reopens uri on whatever LSP sessions have it open, per spec
// §4.6 step 5 "Post-apply LSP resync". Supplied by the caller, which
// knows the session/pool wiring the executor itself is agnostic to.
type ResyncFunc func(uri proto.URI) error

// pathLocks is the process-wide advisory lock table keyed by canonical
// path (spec §4.6 "Concurrency"): acquired in sorted order by every Apply
// call so that concurrent applies touching disjoint files never block
// each other, and applies touching the same file never interleave.
var pathLocks = struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}{locks: make(map[string]*sync.Mutex)}

func lockFor(path string) *sync.Mutex {
	pathLocks.mu.Lock()
	defer pathLocks.mu.Unlock()
	l, ok := pathLocks.locks[path]
	if !ok {
		l = &sync.Mutex{}
		pathLocks.locks[path] = l
	}
	return l
}

// Executor applies RefactorPlans against the filesystem (spec §4.6).
type Executor struct {
	resolver *pathutil.Resolver
	resync   ResyncFunc
	logger   *log.Logger
}

// NewExecutor builds an Executor rooted at resolver's project root. resync
// may be nil, in which case post-apply document resync is skipped (used
// by planner-level dry-run previews and tests).
func NewExecutor(resolver *pathutil.Resolver, resync ResyncFunc) *Executor {
	return &Executor{resolver: resolver, resync: resync, logger: log.Default().With("component", "executor")}
}

// WithLogger replaces the default logger, for callers that want the
// executor's commit/rollback events under their own component scope.
func (e *Executor) WithLogger(logger *log.Logger) *Executor {
	e.logger = logger
	return e
}

// stagedFile tracks one file's edit application from pre-image through
// committed rename, so a failed commit pass can roll back precisely.
type stagedFile struct {
	uri       proto.URI
	realPath  string // the file actually written (symlink target, if any)
	preImage  []byte
	newContent []byte
	tempPath  string
	committed bool
}

// Apply validates plan against on-disk state, then — unless opts.DryRun —
// applies every edit and file operation atomically, or none at all (spec
// §4.6 contract).
func (e *Executor) Apply(plan *Plan, opts Options) (*ApplyResult, error) {
	if plan.Edit.EditCount() > maxEditsPerPlan {
		return nil, errs.New(errs.PlanTooLarge, "plan has %d edits, exceeds cap of %d", plan.Edit.EditCount(), maxEditsPerPlan)
	}

	uris := plan.Edit.URIs()
	paths := make(map[proto.URI]string, len(uris))
	canonical := make([]string, 0, len(uris))
	for _, u := range uris {
		p, err := pathutil.FromURI(string(u))
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, err, "resolve uri %s", u)
		}
		resolved, err := e.resolver.Resolve(p)
		if err != nil {
			return nil, err
		}
		paths[u] = resolved
		canonical = append(canonical, resolved)
	}
	for _, op := range plan.Edit.FileOps {
		for _, u := range []proto.URI{op.OldURI, op.NewURI} {
			if u == "" {
				continue
			}
			if _, ok := paths[u]; ok {
				continue
			}
			p, err := pathutil.FromURI(string(u))
			if err != nil {
				return nil, errs.Wrap(errs.InternalError, err, "resolve uri %s", u)
			}
			resolved, err := e.resolver.Resolve(p)
			if err != nil {
				return nil, err
			}
			paths[u] = resolved
			canonical = append(canonical, resolved)
		}
	}

	// Acquire advisory locks in deterministic sorted order (spec §4.6
	// "Concurrency") to avoid deadlocking against a concurrent Apply that
	// touches an overlapping but differently-ordered file set.
	sort.Strings(canonical)
	canonical = dedupeSorted(canonical)
	for _, p := range canonical {
		lockFor(p).Lock()
	}
	defer func() {
		for _, p := range canonical {
			lockFor(p).Unlock()
		}
	}()

	staged := make(map[proto.URI]*stagedFile)

	// --- 1. Validation pass (spec §4.6 step 1) ---
	for _, u := range uris {
		path := paths[u]
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ApplyFailed, err, "read %s", path)
		}
		if len(content) > maxEditableFileBytes {
			return nil, errs.New(errs.PlanTooLarge, "%s exceeds %d byte edit cap", path, maxEditableFileBytes)
		}
		if opts.ValidateChecksums {
			want, ok := plan.Checksums[u]
			if !ok {
				return nil, errs.New(errs.InternalError, "plan missing checksum for %s", u)
			}
			if HashContent(content) != want {
				return nil, errs.New(errs.StalePlan, "file %s changed since the plan was built", u).WithDetail("uri", u)
			}
		}
		if err := validateEditsInBounds(content, plan.Edit.Changes[u]); err != nil {
			return nil, err
		}
		staged[u] = &stagedFile{uri: u, realPath: path, preImage: content}
	}

	if err := validateFileOpPreconditions(plan.Edit.FileOps, paths); err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &ApplyResult{Status: "dry-run", ModifiedURIs: uris, FileOps: plan.Edit.FileOps, Warnings: plan.Warnings}, nil
	}

	// --- 2. Staging pass (spec §4.6 step 2) ---
	for _, u := range uris {
		sf := staged[u]
		target := sf.realPath
		if real, isLink, err := pathutil.ResolveSymlink(target); err == nil && isLink {
			target = real // write through the link, never replace it
		}
		sf.realPath = target

		edits := proto.SortedEditsForApply(plan.Edit.Changes[u])
		newContent, err := applyTextEdits(sf.preImage, edits)
		if err != nil {
			rollbackNone(staged)
			return nil, errs.Wrap(errs.ApplyFailed, err, "apply edits to %s", u)
		}
		sf.newContent = newContent

		tmp, err := writeSiblingTemp(target, newContent)
		if err != nil {
			rollback(staged)
			return nil, errs.Wrap(errs.ApplyFailed, err, "stage %s", target)
		}
		sf.tempPath = tmp

		if opts.CreateBackup {
			_ = os.WriteFile(target+".bak", sf.preImage, 0o644)
		}
	}

	// --- 3. Commit pass (spec §4.6 step 3) ---
	for _, u := range uris {
		sf := staged[u]
		if sf.realPath != paths[u] {
			// Symlink target: overwrite it in place so it keeps its inode.
			sf.committed = true
			if err := os.WriteFile(sf.realPath, sf.newContent, 0o644); err != nil {
				rollback(staged)
				return nil, errs.Wrap(errs.ApplyFailed, err, "commit %s", sf.realPath)
			}
			_ = os.Remove(sf.tempPath)
			sf.tempPath = ""
			continue
		}
		if err := os.Rename(sf.tempPath, sf.realPath); err != nil {
			rollback(staged)
			return nil, errs.Wrap(errs.ApplyFailed, err, "commit %s", sf.realPath)
		}
		sf.committed = true
	}

	committedOps := make([]proto.FileOp, 0, len(plan.Edit.FileOps))
	for _, op := range plan.Edit.FileOps {
		if err := applyFileOp(op, paths); err != nil {
			rollback(staged)
			rollbackFileOps(committedOps, paths)
			observability.EmitError(e.logger, observability.EventApplyRolledBack, "planType", string(plan.Type), "err", err)
			return nil, errs.Wrap(errs.ApplyFailed, err, "apply file op %s", op.Kind)
		}
		committedOps = append(committedOps, op)
	}

	// --- 5. Post-apply LSP resync ---
	if e.resync != nil {
		for _, u := range uris {
			_ = e.resync(u) // best-effort; a stale server view self-heals on the next edit
		}
	}

	observability.Emit(e.logger, observability.EventApplyCommitted, "planType", string(plan.Type), "files", len(uris), "fileOps", len(committedOps))
	return &ApplyResult{Status: "applied", ModifiedURIs: uris, FileOps: committedOps, Warnings: plan.Warnings}, nil
}

// validateEditsInBounds re-checks (spec §4.6 step 1c) that every edit's
// range still lies within the file's current line/character grid.
func validateEditsInBounds(content []byte, edits []proto.TextEdit) error {
	lines := splitKeepEnds(content)
	for _, e := range edits {
		if int(e.Range.Start.Line) >= len(lines) || int(e.Range.End.Line) >= len(lines) {
			return errs.New(errs.StalePlan, "edit range line %d exceeds file length %d lines", e.Range.End.Line, len(lines))
		}
		startLen := uint32(len([]rune(stripEnding(lines[e.Range.Start.Line]))))
		endLen := uint32(len([]rune(stripEnding(lines[e.Range.End.Line]))))
		if e.Range.Start.Character > startLen || e.Range.End.Character > endLen {
			return errs.New(errs.StalePlan, "edit range character offset exceeds current line length")
		}
	}
	return nil
}

func validateFileOpPreconditions(ops []proto.FileOp, paths map[proto.URI]string) error {
	for _, op := range ops {
		switch op.Kind {
		case proto.FileOpRename, proto.FileOpMoveDir:
			src := paths[op.OldURI]
			dst := paths[op.NewURI]
			if _, err := os.Lstat(src); err != nil {
				return errs.New(errs.ApplyFailed, "rename source %s does not exist", src)
			}
			if _, err := os.Lstat(dst); err == nil {
				return errs.New(errs.ApplyFailed, "rename destination %s already exists", dst)
			}
		case proto.FileOpDelete:
			if _, err := os.Lstat(paths[op.OldURI]); err != nil {
				return errs.New(errs.ApplyFailed, "delete target %s does not exist", paths[op.OldURI])
			}
		case proto.FileOpCreate:
			dst := paths[op.NewURI]
			if _, err := os.Lstat(dst); err == nil {
				return errs.New(errs.ApplyFailed, "create target %s already exists", dst)
			}
		}
	}
	return nil
}

func applyFileOp(op proto.FileOp, paths map[proto.URI]string) error {
	switch op.Kind {
	case proto.FileOpRename, proto.FileOpMoveDir:
		dst := paths[op.NewURI]
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.Rename(paths[op.OldURI], dst)
	case proto.FileOpDelete:
		return os.Remove(paths[op.OldURI])
	case proto.FileOpCreate:
		dst := paths[op.NewURI]
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, op.Content, 0o644)
	}
	return fmt.Errorf("unknown file op kind %q", op.Kind)
}

// rollbackFileOps best-effort reverses committed file operations in
// reverse order when a later one fails.
func rollbackFileOps(ops []proto.FileOp, paths map[proto.URI]string) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		switch op.Kind {
		case proto.FileOpRename, proto.FileOpMoveDir:
			_ = os.Rename(paths[op.NewURI], paths[op.OldURI])
		case proto.FileOpCreate:
			_ = os.Remove(paths[op.NewURI])
		}
	}
}

// rollback restores every already-committed file from its pre-image and
// unlinks any unfinished temp files (spec §4.6 step 4).
func rollback(staged map[proto.URI]*stagedFile) {
	for _, sf := range staged {
		if sf.committed {
			_ = os.WriteFile(sf.realPath, sf.preImage, 0o644)
		}
		if sf.tempPath != "" {
			_ = os.Remove(sf.tempPath)
		}
	}
}

// rollbackNone unlinks staged temp files when staging itself fails before
// any commit has happened.
func rollbackNone(staged map[proto.URI]*stagedFile) {
	for _, sf := range staged {
		if sf.tempPath != "" {
			_ = os.Remove(sf.tempPath)
		}
	}
}

// writeSiblingTemp writes content to a same-directory temp file so the
// later rename is atomic within the filesystem (spec §4.6 step 2).
func writeSiblingTemp(target string, content []byte) (string, error) {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	nonce := uuid.NewString()[:8]
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%s", base, os.Getpid(), nonce))
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", err
	}
	return tmp, nil
}

// applyTextEdits applies edits (already sorted in reverse document order)
// to content, preserving the original line-ending style.
func applyTextEdits(content []byte, edits []proto.TextEdit) ([]byte, error) {
	crlf := strings.Contains(string(content), "\r\n")
	lines := splitKeepEnds(content)

	for _, edit := range edits {
		if int(edit.Range.End.Line) >= len(lines) {
			return nil, fmt.Errorf("edit range exceeds %d lines", len(lines))
		}
		startLine := lines[edit.Range.Start.Line]
		endLine := lines[edit.Range.End.Line]

		startRunes := []rune(stripEnding(startLine))
		endRunes := []rune(stripEnding(endLine))
		if int(edit.Range.Start.Character) > len(startRunes) || int(edit.Range.End.Character) > len(endRunes) {
			return nil, fmt.Errorf("edit character offset out of range")
		}

		before := string(startRunes[:edit.Range.Start.Character])
		after := string(endRunes[edit.Range.End.Character:])
		replacement := before + edit.NewText + after

		merged := append([]string{replacement}, lines[edit.Range.End.Line+1:]...)
		lines = append(lines[:edit.Range.Start.Line], merged...)
	}

	joiner := "\n"
	if crlf {
		joiner = "\r\n"
	}
	// Re-attach line endings only between lines; the splitter already
	// stripped them, and an original containing any \r\n is rewritten
	// with \r\n between every line.
	return []byte(strings.Join(lines, joiner)), nil
}

// splitKeepEnds splits content into lines with line-ending markers
// stripped, treating both \n and \r\n inputs uniformly.
func splitKeepEnds(content []byte) []string {
	normalized := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.Split(normalized, "\n")
}

func stripEnding(line string) string {
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
}

func dedupeSorted(in []string) []string {
	out := in[:0]
	var prev string
	for i, v := range in {
		if i == 0 || v != prev {
			out = append(out, v)
			prev = v
		}
	}
	return out
}
