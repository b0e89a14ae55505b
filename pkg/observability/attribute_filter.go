package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// maxSpanValueLen caps exported string attribute values. Checkpoint ids and
// paths can echo scanned input.
const maxSpanValueLen = 128

// spanKeys are the attribute keys the engine, HTTP server and MCP server emit.
var spanKeys = map[string]bool{
	"scan.id":            true,
	"checkpoint":         true,
	"outcome":            true,
	"reason":             true,
	"progress.completed": true,
	"error":              true,
}

// spanPrefixes admit whole attribute families.
var spanPrefixes = []string{"stamprally.", "http.", "url.", "mcp.", "error.", "checkpoint."}

// deniedKeys never leave the process: raw payloads and anything personal.
var deniedKeys = map[string]bool{
	"raw":           true,
	"scan.raw":      true,
	"email":         true,
	"request.body":  true,
	"response.body": true,
}

var deniedPrefixes = []string{"user.", "device."}

// attributeFilter is a SpanProcessor that exports only known attributes and
// clips long string values before handing spans to the delegate.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
}

// NewAttributeFilter wraps delegate with the span attribute policy. A non-nil
// logger receives a warning for every dropped key.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

// OnStart delegates to the wrapped processor.
func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd hands the delegate a filtered view of the finished span.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, attrs: f.filter(s.Attributes())})
}

// Shutdown delegates to the wrapped processor.
func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

// ForceFlush delegates to the wrapped processor.
func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) filter(attrs []attribute.KeyValue) []attribute.KeyValue {
	kept := make([]attribute.KeyValue, 0, len(attrs))

	for _, kv := range attrs {
		key := string(kv.Key)
		if !exportable(key) {
			if f.logger != nil {
				f.logger.Warn("span attribute dropped", "key", key)
			}

			continue
		}

		kept = append(kept, clipValue(kv))
	}

	return kept
}

func exportable(key string) bool {
	if deniedKeys[key] || hasAnyPrefix(key, deniedPrefixes) {
		return false
	}

	return spanKeys[key] || hasAnyPrefix(key, spanPrefixes)
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

func clipValue(kv attribute.KeyValue) attribute.KeyValue {
	if kv.Value.Type() != attribute.STRING {
		return kv
	}

	s := kv.Value.AsString()
	if utf8.RuneCountInString(s) <= maxSpanValueLen {
		return kv
	}

	return kv.Key.String(string([]rune(s)[:maxSpanValueLen]))
}

// filteredSpan is a ReadOnlySpan with a replaced attribute set.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

// Attributes returns the filtered attributes.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	return s.attrs
}
