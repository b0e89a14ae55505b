// Package engine is the check-in progress engine: it turns raw scan text into
// a recorded stamp, a business rejection, or a failure the caller can retry.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
	"github.com/Sumatoshi-tech/stamprally/pkg/progress"
	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/scan"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
	"github.com/Sumatoshi-tech/stamprally/pkg/validate"
)

const tracerName = "stamprally.engine"

// ErrNoStore is returned by New when Deps carries no store.
var ErrNoStore = errors.New("engine requires a progress store")

// Deps are the collaborators of an Engine. Only Store is required.
type Deps struct {
	Store *store.Store
	// Parser decodes payloads. Nil selects a parser over the store's registry.
	Parser *scan.Parser
	// Clock returns the scan instant. Nil selects time.Now.
	Clock   func() time.Time
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.ScanMetrics
}

// Engine wires parsing, validation and persistence together.
type Engine struct {
	store   *store.Store
	parser  *scan.Parser
	now     func() time.Time
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.ScanMetrics
}

// New creates an engine from deps.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, ErrNoStore
	}

	if deps.Parser == nil {
		deps.Parser = scan.NewRegistryParser(deps.Store.Registry())
	}

	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	return &Engine{
		store:   deps.Store,
		parser:  deps.Parser,
		now:     deps.Clock,
		logger:  deps.Logger.With("component", "engine"),
		tracer:  deps.Tracer,
		metrics: deps.Metrics,
	}, nil
}

// Registry returns the checkpoint catalog.
func (e *Engine) Registry() *registry.Registry {
	return e.store.Registry()
}

// Parser returns the payload parser.
func (e *Engine) Parser() *scan.Parser {
	return e.parser
}

// Scan handles one raw payload. It never returns an error: every failure is
// reported through the outcome kind.
func (e *Engine) Scan(ctx context.Context, raw string) Outcome {
	start := e.now()

	scanID := uuid.NewString()
	ctx = observability.WithScanID(ctx, scanID)

	ctx, span := e.tracer.Start(ctx, "stamprally.scan", trace.WithAttributes(attribute.String("scan.id", scanID)))
	defer span.End()

	e.logger.DebugContext(ctx, "scan received", observability.AttrRaw, raw)

	out := e.scan(ctx, raw)

	e.finish(ctx, span, out, start)
	e.remember(ctx, scanID, raw, out)

	return out
}

// ScanFrom reads one payload from scanner and handles it. Scanner failures
// yield a scan_unavailable outcome and leave progress untouched.
func (e *Engine) ScanFrom(ctx context.Context, scanner scan.Scanner) Outcome {
	raw, err := scanner.Scan(ctx)
	if err != nil {
		start := e.now()

		ctx, span := e.tracer.Start(ctx, "stamprally.scan")
		defer span.End()

		e.logger.InfoContext(ctx, "scanner unavailable", "error", err)

		out := Outcome{
			Kind:    KindScanUnavailable,
			Message: unavailableMessage(err),
			Err:     err,
		}

		snapshot, snapErr := e.store.Current(ctx)
		if snapErr == nil {
			out = e.withProgress(out, snapshot)
		}

		e.finish(ctx, span, out, start)

		return out
	}

	return e.Scan(ctx, raw)
}

// Snapshot returns the current progress record.
func (e *Engine) Snapshot(ctx context.Context) (progress.UserProgress, error) {
	p, err := e.store.Current(ctx)
	if err != nil {
		return progress.UserProgress{}, err
	}

	return p, nil
}

// Stats returns the completion summary of the current record.
func (e *Engine) Stats(ctx context.Context) (progress.Stats, error) {
	p, err := e.Snapshot(ctx)
	if err != nil {
		return progress.Stats{}, err
	}

	return progress.Summarize(p), nil
}

// Next suggests the checkpoint to visit next. It returns false when every
// stamp is collected.
func (e *Engine) Next(ctx context.Context) (registry.Checkpoint, bool, error) {
	p, err := e.Snapshot(ctx)
	if err != nil {
		return registry.Checkpoint{}, false, err
	}

	cp, ok := progress.NextCheckpoint(e.Registry(), p)

	return cp, ok, nil
}

// Reset discards all progress. Callers confirm with the user first.
func (e *Engine) Reset(ctx context.Context) (progress.UserProgress, error) {
	ctx, span := e.tracer.Start(ctx, "stamprally.reset")
	defer span.End()

	p, err := e.store.Reset(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset failed")

		return progress.UserProgress{}, err
	}

	e.metrics.RecordReset(ctx)

	return p, nil
}

// History returns up to limit recent scan attempts, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	entries, err := e.store.History(ctx, limit)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ClearHistory drops the scan history. Progress is not affected.
func (e *Engine) ClearHistory(ctx context.Context) error {
	return e.store.ClearHistory(ctx)
}

func (e *Engine) scan(ctx context.Context, raw string) Outcome {
	payload, err := e.parser.Parse(raw)
	if err != nil {
		e.logger.DebugContext(ctx, "payload not recognized", "error", err)

		out := Outcome{Kind: KindParseFailed, Message: msgParseFailed, Err: err}

		snapshot, snapErr := e.store.Current(ctx)
		if snapErr == nil {
			out = e.withProgress(out, snapshot)
		}

		return out
	}

	p, decision, err := e.store.RecordCompletion(ctx, payload.CheckpointID(), e.now())
	if err != nil {
		e.logger.ErrorContext(ctx, "record completion", "checkpoint", payload.CheckpointID(), "error", err)

		out := Outcome{
			Kind:       KindPersistenceFailed,
			Checkpoint: decision.Checkpoint,
			Format:     payload.Format(),
			Message:    msgPersistenceFailed,
			Err:        err,
		}

		// A failed read yields no snapshot; a failed write yields the pre-write one.
		if p.TotalCheckpoints == 0 {
			return out
		}

		return e.withProgress(out, p)
	}

	if !decision.Admissible {
		out := Outcome{
			Kind:       KindRejected,
			Checkpoint: decision.Checkpoint,
			Reason:     decision.Reason,
			Format:     payload.Format(),
			Message:    decision.Message(),
		}

		if out.Checkpoint.ID == "" {
			out.Checkpoint.ID = payload.CheckpointID()
		}

		return e.withProgress(out, p)
	}

	out := e.withProgress(Outcome{
		Kind:       KindAccepted,
		Checkpoint: decision.Checkpoint,
		Format:     payload.Format(),
	}, p)
	out.Message = acceptedMessage(decision.Checkpoint, out.Stats)

	return out
}

func (e *Engine) withProgress(out Outcome, p progress.UserProgress) Outcome {
	out.Progress = p
	out.Stats = progress.Summarize(p)

	if p.TotalCheckpoints > 0 {
		if next, ok := progress.NextCheckpoint(e.Registry(), p); ok {
			out.Next = next.ID
		}
	}

	return out
}

func (e *Engine) finish(ctx context.Context, span trace.Span, out Outcome, start time.Time) {
	span.SetAttributes(
		attribute.String("outcome", string(out.Kind)),
		attribute.Int("progress.completed", out.Stats.Completed),
	)

	if out.Checkpoint.ID != "" {
		span.SetAttributes(attribute.String("checkpoint", out.Checkpoint.ID))
	}

	if out.Reason != "" {
		span.SetAttributes(attribute.String("reason", string(out.Reason)))
	}

	if out.Kind == KindPersistenceFailed {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "persistence failed")
	}

	// Unknown ids come from user input and would explode metric cardinality.
	checkpoint := out.Checkpoint.ID
	if out.Reason == validate.ReasonUnknownCheckpoint {
		checkpoint = ""
	}

	e.metrics.RecordScan(ctx, observability.ScanRecord{
		Outcome:    string(out.Kind),
		Reason:     string(out.Reason),
		Checkpoint: checkpoint,
		Completed:  out.Stats.Completed,
		Duration:   e.now().Sub(start),
	})
}

// remember appends the attempt to the scan history. A history failure is
// logged and never changes the outcome.
func (e *Engine) remember(ctx context.Context, scanID, raw string, out Outcome) {
	entry := store.HistoryEntry{
		ID:           scanID,
		Raw:          raw,
		CheckpointID: out.Checkpoint.ID,
		Format:       string(out.Format),
		Outcome:      string(out.Kind),
		Reason:       string(out.Reason),
		At:           e.now().UnixMilli(),
	}

	_, err := e.store.AppendHistory(ctx, entry)
	if err != nil {
		e.logger.WarnContext(ctx, "append scan history", "error", err)
	}
}
