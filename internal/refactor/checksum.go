// Package refactor implements the plan model (spec §3 RefactorPlan) and
// the two-phase plan → apply executor (spec §4.6). Planners under
// internal/refactor/planner build Plan values; this package never builds
// one itself.
package refactor

import "crypto/sha256"

// Checksum is a content digest over raw file bytes at planning time,
// grounded on the teacher's framework/ast.HashContent which uses the same
// algorithm to key its file cache.
type Checksum [sha256.Size]byte

// HashContent computes the Checksum of content.
func HashContent(content []byte) Checksum {
	return sha256.Sum256(content)
}
