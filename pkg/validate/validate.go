// Package validate decides whether a scanned checkpoint may be recorded against
// a progress snapshot.
package validate

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
)

// DefaultCooldown is the minimum gap between two accepted scans.
const DefaultCooldown = time.Second

// Reason explains why a scan was rejected.
type Reason string

// Rejection reasons, in the order they are checked.
const (
	ReasonUnknownCheckpoint    Reason = "unknown_checkpoint"
	ReasonAlreadyCompleted     Reason = "already_completed"
	ReasonGateRequired         Reason = "gate_required"
	ReasonTooFrequent          Reason = "too_frequent"
	ReasonAlreadyFullyComplete Reason = "already_fully_complete"
)

var reasonMessages = map[Reason]string{
	ReasonUnknownCheckpoint:    "This code does not belong to any checkpoint.",
	ReasonAlreadyCompleted:     "You have already collected this stamp.",
	ReasonGateRequired:         "Please check in at the sign-in point first.",
	ReasonTooFrequent:          "Scanning too fast, please wait a moment and try again.",
	ReasonAlreadyFullyComplete: "All stamps are collected, the trail is complete.",
}

// Message returns the user-facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}

	return string(r)
}

// Scope selects what the cooldown is measured against.
type Scope string

// Cooldown scopes.
const (
	// ScopeOff leaves distinct checkpoints unrestricted. Repeats of the same
	// checkpoint are already rejected as already_completed.
	ScopeOff Scope = "off"
	// ScopeAny measures the cooldown from the last accepted scan of any checkpoint.
	ScopeAny Scope = "any"
)

// ErrUnknownScope is returned by ParseScope for an unsupported scope name.
var ErrUnknownScope = errors.New("unknown cooldown scope")

// ParseScope resolves a scope name. The empty string selects ScopeOff.
func ParseScope(name string) (Scope, error) {
	switch Scope(name) {
	case "", ScopeOff:
		return ScopeOff, nil
	case ScopeAny:
		return ScopeAny, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, name)
	}
}

// Policy configures the rapid-fire guard.
type Policy struct {
	Cooldown time.Duration
	Scope    Scope
}

// DefaultPolicy requires no interval between distinct checkpoints. The
// one-second cooldown takes effect only when the scope is switched to ScopeAny.
func DefaultPolicy() Policy {
	return Policy{Cooldown: DefaultCooldown, Scope: ScopeOff}
}

// Decision is the verdict for one scan. Checkpoint is set whenever the id resolved.
type Decision struct {
	Admissible bool                `json:"admissible"`
	Reason     Reason              `json:"reason,omitempty"`
	Checkpoint registry.Checkpoint `json:"checkpoint"`
}

// Message returns the user-facing text of a rejection, or empty when admissible.
func (d Decision) Message() string {
	if d.Admissible {
		return ""
	}

	return d.Reason.Message()
}

func admit(cp registry.Checkpoint) Decision {
	return Decision{Admissible: true, Checkpoint: cp}
}

func reject(reason Reason, cp registry.Checkpoint) Decision {
	return Decision{Reason: reason, Checkpoint: cp}
}

// Validator runs the admission checks. It never touches storage.
type Validator struct {
	reg    *registry.Registry
	policy Policy
}

// New creates a validator over reg.
func New(reg *registry.Registry, policy Policy) *Validator {
	if policy.Scope == "" {
		policy.Scope = ScopeOff
	}

	return &Validator{reg: reg, policy: policy}
}

// Policy returns the active cooldown policy.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Check evaluates id against the snapshot p at instant now. The first failing
// check determines the reason.
func (v *Validator) Check(id string, p progress.UserProgress, now time.Time) Decision {
	cp, err := v.reg.Get(id)
	if err != nil {
		return reject(ReasonUnknownCheckpoint, registry.Checkpoint{ID: registry.NormalizeID(id)})
	}

	if p.Has(cp.ID) {
		return reject(ReasonAlreadyCompleted, cp)
	}

	if !cp.IsGate() && !p.GateCompleted {
		return reject(ReasonGateRequired, cp)
	}

	if v.withinCooldown(p, now) {
		return reject(ReasonTooFrequent, cp)
	}

	if progress.IsFullyComplete(p) {
		return reject(ReasonAlreadyFullyComplete, cp)
	}

	return admit(cp)
}

// withinCooldown treats a last scan in the future (clock moved backwards) as outside the window.
func (v *Validator) withinCooldown(p progress.UserProgress, now time.Time) bool {
	if v.policy.Scope == ScopeOff || v.policy.Cooldown <= 0 || p.LastScanInstant == nil {
		return false
	}

	elapsed := now.Sub(*p.LastScanInstant)

	return elapsed >= 0 && elapsed <= v.policy.Cooldown
}
