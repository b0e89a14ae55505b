package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
)

func newJSONLogger(buf *bytes.Buffer, mode observability.AppMode, env string) *slog.Logger {
	inner := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	return slog.New(observability.NewContextHandler(inner, "stamprally", env, mode))
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestContextHandler_InjectsTraceAndScanIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := newJSONLogger(&buf, observability.ModeServe, "venue")

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = observability.WithScanID(ctx, "scan-1")

	logger.InfoContext(ctx, "stamp collected", "checkpoint", "coffee")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "scan-1", record["scan_id"])
	assert.Equal(t, "coffee", record["checkpoint"])
	assert.Equal(t, "stamprally", record["service"])
	assert.Equal(t, "venue", record["env"])
	assert.Equal(t, "serve", record["mode"])
}

func TestContextHandler_NoCorrelation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	newJSONLogger(&buf, observability.ModeMCP, "").InfoContext(context.Background(), "idle")

	record := decodeRecord(t, &buf)
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "scan_id")
	assert.NotContains(t, record, "env")
	assert.Equal(t, "mcp", record["mode"])
}

func TestContextHandler_ClipsRawPayloads(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := newJSONLogger(&buf, observability.ModeCLI, "")
	logger.Info("parse failed", observability.AttrRaw, strings.Repeat("é", 500))

	raw, ok := decodeRecord(t, &buf)["raw"].(string)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("é", 64)+"…", raw)

	buf.Reset()
	logger.With(observability.AttrRaw, "checkpoint:signin").Info("scan")
	assert.Equal(t, "checkpoint:signin", decodeRecord(t, &buf)["raw"])
}

func TestContextHandler_GroupsKeepServiceAtTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	newJSONLogger(&buf, observability.ModeCLI, "").
		WithGroup("store").
		InfoContext(context.Background(), "saved", slog.String("key", "userProgress"))

	record := decodeRecord(t, &buf)
	assert.Equal(t, "stamprally", record["service"])

	group, ok := record["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "userProgress", group["key"])
}
