// Package progress defines the user progress record and the completion policy
// derived from it.
package progress

import (
	"maps"
	"slices"
	"time"
)

// UserProgress is a snapshot of one installation's stamp collection.
type UserProgress struct {
	GateCompleted        bool                 `json:"gateCompleted"`
	CompletedCheckpoints []string             `json:"completedCheckpoints"`
	CompletionTimestamps map[string]time.Time `json:"completionTimestamps"`
	TotalCheckpoints     int                  `json:"totalCheckpoints"`
	IsFullyComplete      bool                 `json:"isFullyComplete"`
	LastScanInstant      *time.Time           `json:"lastScanInstant"`
}

// New returns the default progress for a catalog of total checkpoints.
func New(total int) UserProgress {
	return UserProgress{
		CompletedCheckpoints: []string{},
		CompletionTimestamps: map[string]time.Time{},
		TotalCheckpoints:     total,
	}
}

// Has reports whether id has already been stamped.
func (p UserProgress) Has(id string) bool {
	return slices.Contains(p.CompletedCheckpoints, id)
}

// Completed returns the number of stamped checkpoints.
func (p UserProgress) Completed() int {
	return len(p.CompletedCheckpoints)
}

// CompletedAt returns when id was stamped.
func (p UserProgress) CompletedAt(id string) (time.Time, bool) {
	at, ok := p.CompletionTimestamps[id]

	return at, ok
}

// Clone returns a deep copy that shares no slices or maps with p.
func (p UserProgress) Clone() UserProgress {
	out := p
	out.CompletedCheckpoints = slices.Clone(p.CompletedCheckpoints)

	if out.CompletedCheckpoints == nil {
		out.CompletedCheckpoints = []string{}
	}

	out.CompletionTimestamps = maps.Clone(p.CompletionTimestamps)
	if out.CompletionTimestamps == nil {
		out.CompletionTimestamps = map[string]time.Time{}
	}

	if p.LastScanInstant != nil {
		last := *p.LastScanInstant
		out.LastScanInstant = &last
	}

	return out
}

// WithCompletion returns a copy of p with id stamped at the given instant.
// The derived fields are recomputed; p itself is not modified.
func (p UserProgress) WithCompletion(id, gateID string, at time.Time) UserProgress {
	out := p.Clone()

	if !out.Has(id) {
		out.CompletedCheckpoints = append(out.CompletedCheckpoints, id)
		out.CompletionTimestamps[id] = at
	}

	if id == gateID {
		out.GateCompleted = true
	}

	out.LastScanInstant = &at
	out.IsFullyComplete = IsFullyComplete(out)

	return out
}
