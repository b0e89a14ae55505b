// Package store owns the persisted progress record. It is the only writer of
// that record and applies every read-validate-write sequence atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
	"github.com/Sumatoshi-tech/stamprally/pkg/persist"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/validate"
)

// Storage keys.
const (
	ProgressKey = "userProgress"
	HistoryKey  = "scanHistory"
)

// Sentinel errors.
var (
	// ErrPersistence wraps every failure to read or write the backing store.
	ErrPersistence = errors.New("progress persistence failed")
	// ErrCorruptRecord means the stored record failed schema validation.
	ErrCorruptRecord = errors.New("corrupt progress record")
)

// Options configures a Store.
type Options struct {
	Policy       validate.Policy
	HistoryLimit int
	// HistoryCodec encodes the history list. Nil selects LZ4-compressed JSON.
	HistoryCodec persist.Codec
	// Clock returns the current instant. Nil selects time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Store serializes access to the single progress record.
type Store struct {
	mu        sync.Mutex
	historyMu sync.Mutex

	reg          *registry.Registry
	validator    *validate.Validator
	progress     *persist.Persister[Record]
	history      *persist.Persister[[]HistoryEntry]
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger
}

// New creates a store over backend for the checkpoints of reg.
func New(backend kv.Store, reg *registry.Registry, opts Options) *Store {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	if opts.HistoryCodec == nil {
		opts.HistoryCodec = persist.NewLZ4Codec(nil)
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Store{
		reg:          reg,
		validator:    validate.New(reg, opts.Policy),
		progress:     persist.NewPersister[Record](backend, ProgressKey, persist.NewJSONCodec()).WithCheck(CheckRecord),
		history:      persist.NewPersister[[]HistoryEntry](backend, HistoryKey, opts.HistoryCodec),
		historyLimit: opts.HistoryLimit,
		now:          opts.Clock,
		logger:       opts.Logger.With("component", "store"),
	}
}

// Registry returns the catalog the store validates against.
func (s *Store) Registry() *registry.Registry {
	return s.reg
}

// Validator returns the validator used for admission.
func (s *Store) Validator() *validate.Validator {
	return s.validator
}

// Defaults returns the empty progress for the current catalog.
func (s *Store) Defaults() progress.UserProgress {
	return progress.New(s.reg.Len())
}

// Current returns the normalized snapshot, persisting defaults on first access.
func (s *Store) Current(ctx context.Context) (progress.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentLocked(ctx)
}

// RecordCompletion is the single mutation entry point. The validator runs
// against the freshest snapshot under the store lock; on admission the whole
// record is written once. A rejection returns the unchanged snapshot together
// with the decision. A failed write returns the pre-write snapshot and an
// error wrapping ErrPersistence.
func (s *Store) RecordCompletion(
	ctx context.Context, id string, at time.Time,
) (progress.UserProgress, validate.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentLocked(ctx)
	if err != nil {
		return progress.UserProgress{}, validate.Decision{}, err
	}

	at = toMillisPrecision(at)

	decision := s.validator.Check(id, current, at)
	if !decision.Admissible {
		s.logger.DebugContext(ctx, "scan rejected", "checkpoint", decision.Checkpoint.ID, "reason", decision.Reason)

		return current, decision, nil
	}

	next := current.WithCompletion(decision.Checkpoint.ID, s.reg.Gate().ID, at)

	err = s.save(ctx, next)
	if err != nil {
		return current, decision, err
	}

	s.logger.InfoContext(ctx, "checkpoint recorded",
		"checkpoint", decision.Checkpoint.ID,
		"completed", next.Completed(),
		"total", next.TotalCheckpoints,
	)

	return next, decision, nil
}

// Reset writes the default record without reading the current one, so it
// also recovers from a corrupt record.
func (s *Store) Reset(ctx context.Context) (progress.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := s.Defaults()

	err := s.save(ctx, defaults)
	if err != nil {
		return progress.UserProgress{}, err
	}

	s.logger.InfoContext(ctx, "progress reset")

	return defaults, nil
}

func (s *Store) currentLocked(ctx context.Context) (progress.UserProgress, error) {
	var rec Record

	err := s.progress.Load(ctx, func(loaded *Record) { rec = *loaded })
	if errors.Is(err, kv.ErrNotFound) {
		defaults := s.Defaults()

		err = s.save(ctx, defaults)
		if err != nil {
			return progress.UserProgress{}, err
		}

		return defaults, nil
	}

	if err != nil {
		return progress.UserProgress{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	stored := rec.Progress()
	normalized := progress.Normalize(stored, s.reg.Gate().ID, s.reg.Len())

	if normalized.IsFullyComplete != rec.IsFullyComplete || normalized.GateCompleted != rec.GateCompleted {
		s.logger.WarnContext(ctx, "derived progress fields drifted, recomputed",
			"stored_complete", rec.IsFullyComplete,
			"stored_gate", rec.GateCompleted,
		)
	}

	return normalized, nil
}

func (s *Store) save(ctx context.Context, p progress.UserProgress) error {
	err := s.progress.Save(ctx, func() *Record {
		rec := FromProgress(p, s.now())

		return &rec
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return nil
}
