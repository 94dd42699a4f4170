package refactor

import (
	"github.com/lexcodex/devbridge/internal/proto"
)

// PlanType enumerates the refactor intents a planner can produce (spec
// §3 RefactorPlan).
type PlanType string

const (
	PlanRename         PlanType = "rename"
	PlanMove           PlanType = "move"
	PlanExtract        PlanType = "extract"
	PlanInline         PlanType = "inline"
	PlanReorder        PlanType = "reorder"
	PlanTransform      PlanType = "transform"
	PlanDelete         PlanType = "delete"
	PlanFindReplace    PlanType = "find-replace"
	PlanPackageCreate  PlanType = "package-create"
	PlanExtractDeps    PlanType = "extract-deps"
	PlanUpdateMembers  PlanType = "update-members"
)

// Warning is a free-form, machine-readable note a planner attaches to a
// Plan for a suspicious-but-not-incorrect condition. Planners never abort
// for a warning; the edit set is unaffected by its presence (spec §4.5
// "Common warnings").
type Warning struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Plan is the core's RefactorPlan: an immutable, ephemeral description of
// a refactor, produced by a planner and consumed by the Executor. Its
// checksums give it a TTL measured in file modifications, not wall clock
// (spec §3 "Lifecycles").
type Plan struct {
	Type      PlanType          `json:"type"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Edit      *proto.WorkspaceEdit `json:"edit"`
	Checksums map[proto.URI]Checksum `json:"-"`
	Warnings  []Warning         `json:"warnings,omitempty"`
}

// New returns an empty Plan of the given type, ready for a planner to
// populate via RecordChecksum/Edit.AddEdit/Edit.AddFileOp.
func New(planType PlanType) *Plan {
	return &Plan{
		Type:      planType,
		Metadata:  make(map[string]any),
		Edit:      proto.NewWorkspaceEdit(),
		Checksums: make(map[proto.URI]Checksum),
	}
}

// RecordChecksum stores the pre-image checksum for uri, required by spec
// §3 "For every URI the plan touches, the plan records the pre-image
// checksum of the file content at planning time."
func (p *Plan) RecordChecksum(uri proto.URI, content []byte) {
	p.Checksums[uri] = HashContent(content)
}

// Warn appends a warning without altering the edit set.
func (p *Plan) Warn(code, message string, detail map[string]any) {
	p.Warnings = append(p.Warnings, Warning{Code: code, Message: message, Detail: detail})
}

// DryRunRendering is the wire shape returned to an agent for
// `options.dryRun: true` (spec §4.7 "Unified dry-run contract"): a stable,
// serializable snapshot of the plan without internal bookkeeping like raw
// checksums.
type DryRunRendering struct {
	Type           PlanType             `json:"type"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
	Changes        map[proto.URI][]proto.TextEdit `json:"changes"`
	FileOperations []proto.FileOp       `json:"fileOperations,omitempty"`
	Warnings       []Warning            `json:"warnings,omitempty"`
	EditCount      int                  `json:"editCount"`
	TouchedURIs    []proto.URI          `json:"touchedUris"`
}

// Render builds the DryRunRendering for p. Deterministic for deterministic
// planners (spec §4.5.3: "same inputs + same source bytes ⇒ same edits").
func (p *Plan) Render() DryRunRendering {
	return DryRunRendering{
		Type:           p.Type,
		Metadata:       p.Metadata,
		Changes:        p.Edit.Changes,
		FileOperations: p.Edit.FileOps,
		Warnings:       p.Warnings,
		EditCount:      p.Edit.EditCount(),
		TouchedURIs:    p.Edit.URIs(),
	}
}
