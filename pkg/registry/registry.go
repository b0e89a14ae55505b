// Package registry holds the immutable catalog of checkpoints and their unlock rules.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Kind distinguishes the gate checkpoint from standard ones.
type Kind string

// Checkpoint kinds.
const (
	// KindGate is the checkpoint that must be completed before any other.
	KindGate Kind = "gate"
	// KindStandard is any checkpoint completable in any order once the gate is done.
	KindStandard Kind = "standard"
)

// Sentinel errors for catalog construction and lookup.
var (
	ErrNotFound       = errors.New("checkpoint not found")
	ErrEmptyID        = errors.New("checkpoint id is empty")
	ErrDuplicateID    = errors.New("duplicate checkpoint id")
	ErrUnknownKind    = errors.New("unknown checkpoint kind")
	ErrNoGate         = errors.New("catalog has no gate checkpoint")
	ErrMultipleGates  = errors.New("catalog has more than one gate checkpoint")
	ErrBadRequirement = errors.New("standard checkpoint must require the gate")
)

// Position places a checkpoint on the venue map.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
	X   int     `json:"x"   yaml:"x"`
	Y   int     `json:"y"   yaml:"y"`
}

// Checkpoint is a single stamp location.
type Checkpoint struct {
	ID                string   `json:"id"                          yaml:"id"`
	Kind              Kind     `json:"kind"                        yaml:"kind"`
	Order             int      `json:"order"                       yaml:"order"`
	UnlockRequirement string   `json:"unlockRequirement,omitempty" yaml:"unlock_requirement"`
	Name              string   `json:"name"                        yaml:"name"`
	Area              string   `json:"area,omitempty"              yaml:"area"`
	Description       string   `json:"description,omitempty"       yaml:"description"`
	StampImage        string   `json:"stampImage,omitempty"        yaml:"stamp_image"`
	Icon              string   `json:"icon,omitempty"              yaml:"icon"`
	Color             string   `json:"color,omitempty"             yaml:"color"`
	Position          Position `json:"position"                    yaml:"position"`
}

// IsGate reports whether the checkpoint is the gate.
func (c Checkpoint) IsGate() bool {
	return c.Kind == KindGate
}

// Registry is the read-only checkpoint catalog. It is safe for concurrent use.
type Registry struct {
	ordered []Checkpoint
	byID    map[string]int
	gate    int
}

// NormalizeID trims and lowercases a checkpoint id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// New builds a registry and enforces the single-gate invariant.
func New(checkpoints []Checkpoint) (*Registry, error) {
	ordered := make([]Checkpoint, 0, len(checkpoints))
	gateID := ""

	for _, cp := range checkpoints {
		cp.ID = NormalizeID(cp.ID)
		cp.UnlockRequirement = NormalizeID(cp.UnlockRequirement)

		if cp.ID == "" {
			return nil, ErrEmptyID
		}

		switch cp.Kind {
		case KindGate:
			if gateID != "" {
				return nil, fmt.Errorf("%w: %q and %q", ErrMultipleGates, gateID, cp.ID)
			}

			gateID = cp.ID
		case KindStandard:
		default:
			return nil, fmt.Errorf("%w: %q on %q", ErrUnknownKind, cp.Kind, cp.ID)
		}

		ordered = append(ordered, cp)
	}

	if gateID == "" {
		return nil, ErrNoGate
	}

	slices.SortStableFunc(ordered, func(a, b Checkpoint) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}

		return strings.Compare(a.ID, b.ID)
	})

	reg := &Registry{
		ordered: ordered,
		byID:    make(map[string]int, len(ordered)),
	}

	for i := range reg.ordered {
		cp := &reg.ordered[i]

		if _, dup := reg.byID[cp.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, cp.ID)
		}

		reg.byID[cp.ID] = i

		switch {
		case cp.IsGate():
			reg.gate = i
			cp.UnlockRequirement = ""
		case cp.UnlockRequirement == "":
			cp.UnlockRequirement = gateID
		case cp.UnlockRequirement != gateID:
			return nil, fmt.Errorf("%w: %q requires %q, gate is %q",
				ErrBadRequirement, cp.ID, cp.UnlockRequirement, gateID)
		}
	}

	return reg, nil
}

// MustNew is like New but panics when the catalog is invalid.
func MustNew(checkpoints []Checkpoint) *Registry {
	reg, err := New(checkpoints)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}

	return reg
}

// Get returns the checkpoint with the given id.
func (r *Registry) Get(id string) (Checkpoint, error) {
	idx, ok := r.byID[NormalizeID(id)]
	if !ok {
		return Checkpoint{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return r.ordered[idx], nil
}

// Contains reports whether id names a known checkpoint.
func (r *Registry) Contains(id string) bool {
	_, ok := r.byID[NormalizeID(id)]

	return ok
}

// All returns every checkpoint ordered by Order, then id.
func (r *Registry) All() []Checkpoint {
	return slices.Clone(r.ordered)
}

// Gate returns the gate checkpoint.
func (r *Registry) Gate() Checkpoint {
	return r.ordered[r.gate]
}

// Standard returns the non-gate checkpoints in order.
func (r *Registry) Standard() []Checkpoint {
	out := make([]Checkpoint, 0, len(r.ordered)-1)

	for _, cp := range r.ordered {
		if !cp.IsGate() {
			out = append(out, cp)
		}
	}

	return out
}

// Len returns the catalog size.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// IDs returns all checkpoint ids in catalog order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ordered))

	for i, cp := range r.ordered {
		ids[i] = cp.ID
	}

	return ids
}
