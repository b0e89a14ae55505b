// Package mcp implements a Model Context Protocol server exposing the
// check-in engine as MCP tools over stdio transport.
package mcp

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
)

const (
	serverName = "stamprally"
	toolCount  = 5
)

// ServerDeps are the collaborators of the MCP server. Only Engine is
// required; nil Metrics or Tracer turn that instrumentation off.
type ServerDeps struct {
	Engine *engine.Engine
	// Version is reported to clients. Empty reports "dev".
	Version string
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
}

// Server exposes the check-in engine as MCP tools.
type Server struct {
	inner   *mcpsdk.Server
	tools   *toolset
	names   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	version := cmp.Or(deps.Version, "dev")

	srv := &Server{
		inner: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: serverName, Version: version},
			&mcpsdk.ServerOptions{Logger: deps.Logger},
		),
		tools:   &toolset{engine: deps.Engine},
		names:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	register(srv, ToolNameScan, scanToolDescription, srv.tools.handleScan)
	register(srv, ToolNameProgress, progressToolDescription, srv.tools.handleProgress)
	register(srv, ToolNameReset, resetToolDescription, srv.tools.handleReset)
	register(srv, ToolNameHistory, historyToolDescription, srv.tools.handleHistory)
	register(srv, ToolNameCheckpoints, checkpointsToolDescription, srv.tools.handleCheckpoints)

	return srv
}

// ListToolNames returns the registered tool names in sorted order.
func (s *Server) ListToolNames() []string {
	names := slices.Clone(s.names)
	slices.Sort(names)

	return names
}

// Run serves MCP over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport is Run over an arbitrary transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

type toolHandler[Input any] = func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error)

func register[Input any](s *Server, name, description string, handler toolHandler[Input]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, observe(s, name, handler))

	s.names = append(s.names, name)
}

const (
	opPrefix   = "mcp."
	traceIDKey = "trace_id"
)

// observe wraps a tool handler with a server span and RED metrics. A sampled
// span appends "trace_id=<id>" to the result content so clients can quote it.
func observe[Input any](s *Server, tool string, handler toolHandler[Input]) toolHandler[Input] {
	if s.tracer == nil && s.metrics == nil {
		return handler
	}

	op := opPrefix + tool

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		span := trace.SpanFromContext(ctx)
		if s.tracer != nil {
			ctx, span = s.tracer.Start(ctx, op,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("mcp.tool", tool)),
			)
			defer span.End()
		}

		done := s.metrics.TrackInflight(ctx, op)
		defer done()

		result, output, err := handler(ctx, req, input)

		failed := err != nil || (result != nil && result.IsError)
		status := observability.StatusOK

		if failed {
			status = observability.StatusError

			span.SetAttributes(attribute.Bool("mcp.is_error", true))
		}

		s.metrics.RecordRequest(ctx, op, status, time.Since(start))

		if sc := span.SpanContext(); s.tracer != nil && sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: traceIDKey + "=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}

// Tool description constants.
const (
	scanToolDescription = "Record a scanned checkpoint code. Accepts the raw payload text " +
		"(checkpoint:<id>, a JSON document with an id, or a bare id) and returns the outcome " +
		"with the updated progress."

	progressToolDescription = "Return the current stamp collection progress, completion " +
		"statistics and the suggested next checkpoint."

	resetToolDescription = "Discard all collected stamps. Requires confirm=true."

	historyToolDescription = "List recent scan attempts, newest first."

	checkpointsToolDescription = "List the checkpoint catalog, optionally sorted (order, name, area) " +
		"or filtered by a keyword."
)
