package observability

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrScanID  = "scan_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"

	// AttrRaw is the log key for raw scan payloads. Values are cut to
	// maxRawLogLen runes so a hostile code cannot flood the log.
	AttrRaw      = "raw"
	maxRawLogLen = 64
)

type scanIDKey struct{}

// WithScanID returns a context whose log records carry the scan id.
func WithScanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scanIDKey{}, id)
}

// ScanIDFromContext returns the scan id set by WithScanID.
func ScanIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(scanIDKey{}).(string)

	return id, ok && id != ""
}

// ContextHandler is an [slog.Handler] that stamps every record with the
// request correlation found in the context: the OpenTelemetry trace and span
// ids and the scan id. Service metadata (service, env, mode) is attached once
// at construction so it stays at the top level under WithGroup.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner with correlation and service metadata.
func NewContextHandler(inner slog.Handler, service, env string, appMode AppMode) *ContextHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &ContextHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds correlation attributes, truncates raw payloads and delegates.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(clipRaw(attr))

		return true
	})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if id, ok := ScanIDFromContext(ctx); ok {
		out.AddAttrs(slog.String(attrScanID, id))
	}

	err := h.inner.Handle(ctx, out)
	if err != nil {
		return fmt.Errorf("context handler: %w", err)
	}

	return nil
}

// WithAttrs returns a handler with attrs pre-attached to the inner handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clipped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clipped[i] = clipRaw(attr)
	}

	return &ContextHandler{inner: h.inner.WithAttrs(clipped)}
}

// WithGroup returns a handler that nests later attributes under name.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

func clipRaw(attr slog.Attr) slog.Attr {
	if attr.Key != AttrRaw || attr.Value.Kind() != slog.KindString {
		return attr
	}

	s := attr.Value.String()
	if utf8.RuneCountInString(s) <= maxRawLogLen {
		return attr
	}

	runes := []rune(s)

	return slog.String(AttrRaw, string(runes[:maxRawLogLen])+"…")
}
