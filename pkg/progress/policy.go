package progress

import (
	"math"
	"slices"

	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
)

const fullPercentage = 100

// Phase is the coarse progress state. Phases only move forward until a reset.
type Phase string

// Progress phases.
const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

// Stats summarizes progress for display.
type Stats struct {
	Total      int   `json:"total"`
	Completed  int   `json:"completed"`
	Remaining  int   `json:"remaining"`
	Percentage int   `json:"percentage"`
	Phase      Phase `json:"phase"`
}

// IsFullyComplete reports whether every checkpoint counted in the record is stamped.
// An over-count left behind by a shrunken catalog also counts as complete.
func IsFullyComplete(p UserProgress) bool {
	return p.TotalCheckpoints > 0 && p.Completed() >= p.TotalCheckpoints
}

// Remaining returns how many stamps are still missing, never less than zero.
func Remaining(p UserProgress) int {
	return max(p.TotalCheckpoints-p.Completed(), 0)
}

// Percentage returns round(100*completed/total), 0 for an empty total, capped at 100.
func Percentage(p UserProgress) int {
	if p.TotalCheckpoints <= 0 {
		return 0
	}

	pct := int(math.Round(fullPercentage * float64(p.Completed()) / float64(p.TotalCheckpoints)))

	return min(pct, fullPercentage)
}

// PhaseOf returns the phase for p.
func PhaseOf(p UserProgress) Phase {
	switch {
	case IsFullyComplete(p):
		return PhaseCompleted
	case p.GateCompleted:
		return PhaseInProgress
	default:
		return PhaseNotStarted
	}
}

// Summarize computes display statistics for p.
func Summarize(p UserProgress) Stats {
	return Stats{
		Total:      p.TotalCheckpoints,
		Completed:  p.Completed(),
		Remaining:  Remaining(p),
		Percentage: Percentage(p),
		Phase:      PhaseOf(p),
	}
}

// Normalize rebuilds the derived fields of p from its raw data: completed ids are
// deduplicated, timestamps of ids that are not completed are dropped, the gate
// flag follows the presence of the gate id, and a non-positive total is replaced
// by fallbackTotal. Stored derived booleans are never trusted.
func Normalize(p UserProgress, gateID string, fallbackTotal int) UserProgress {
	out := p.Clone()

	seen := make(map[string]struct{}, len(out.CompletedCheckpoints))
	ids := out.CompletedCheckpoints[:0]

	for _, id := range out.CompletedCheckpoints {
		id = registry.NormalizeID(id)
		if id == "" {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	out.CompletedCheckpoints = ids

	for id := range out.CompletionTimestamps {
		if _, ok := seen[id]; !ok {
			delete(out.CompletionTimestamps, id)
		}
	}

	if out.TotalCheckpoints <= 0 {
		out.TotalCheckpoints = fallbackTotal
	}

	out.GateCompleted = slices.Contains(out.CompletedCheckpoints, gateID)
	out.IsFullyComplete = IsFullyComplete(out)

	return out
}

// NextCheckpoint suggests what to scan next: the gate until it is stamped, then
// the lowest-order standard checkpoint still missing. It returns false when
// nothing is left.
func NextCheckpoint(reg *registry.Registry, p UserProgress) (registry.Checkpoint, bool) {
	if !p.GateCompleted {
		return reg.Gate(), true
	}

	for _, cp := range reg.Standard() {
		if !p.Has(cp.ID) {
			return cp, true
		}
	}

	return registry.Checkpoint{}, false
}
