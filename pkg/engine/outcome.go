package engine

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/scan"
	"github.com/Sumatoshi-tech/stamprally/pkg/validate"
)

// Kind classifies the result of a scan.
type Kind string

// Outcome kinds.
const (
	KindAccepted          Kind = "accepted"
	KindRejected          Kind = "rejected"
	KindParseFailed       Kind = "parse_failed"
	KindScanUnavailable   Kind = "scan_unavailable"
	KindPersistenceFailed Kind = "persistence_failed"
)

// User-facing messages for outcomes that carry no rejection reason.
const (
	msgParseFailed       = "Unrecognized code, please scan a checkpoint code."
	msgScanCancelled     = "Scan cancelled."
	msgPermissionDenied  = "Camera permission is required to scan codes."
	msgScanUnavailable   = "Scanning is not available right now."
	msgPersistenceFailed = "Your progress could not be saved, please try again."
	msgAllCollected      = "Congratulations, every stamp is collected!"
)

// Outcome is the result of one scan attempt. Progress and Stats describe the
// record as it is after the attempt. When the record itself could not be read
// they stay zero, are omitted from JSON, and HasProgress reports false.
type Outcome struct {
	Kind       Kind                  `json:"kind"`
	Checkpoint registry.Checkpoint   `json:"checkpoint,omitzero"`
	Reason     validate.Reason       `json:"reason,omitempty"`
	Message    string                `json:"message"`
	Format     scan.Format           `json:"format,omitempty"`
	Progress   progress.UserProgress `json:"progress,omitzero"`
	Stats      progress.Stats        `json:"stats,omitzero"`
	// Next is the suggested checkpoint to visit, empty when nothing is left.
	Next string `json:"next,omitempty"`
	Err  error  `json:"-"`
}

// Accepted reports whether the scan stamped a checkpoint.
func (o Outcome) Accepted() bool {
	return o.Kind == KindAccepted
}

// HasProgress reports whether Progress and Stats were filled from a readable
// record. A catalog always holds the gate, so a real record has a total.
func (o Outcome) HasProgress() bool {
	return o.Stats.Total > 0
}

func acceptedMessage(cp registry.Checkpoint, stats progress.Stats) string {
	name := cp.Name
	if name == "" {
		name = cp.ID
	}

	if stats.Remaining == 0 {
		return msgAllCollected
	}

	return fmt.Sprintf("Stamp collected at %s! %d to go.", name, stats.Remaining)
}

func unavailableMessage(err error) string {
	switch {
	case errors.Is(err, scan.ErrCancelled):
		return msgScanCancelled
	case errors.Is(err, scan.ErrPermissionDenied):
		return msgPermissionDenied
	default:
		return msgScanUnavailable
	}
}
