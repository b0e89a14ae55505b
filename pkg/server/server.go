// Package server exposes the check-in engine over a JSON HTTP API together
// with health, readiness and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
)

// Default HTTP timeouts.
const (
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// Deps are the collaborators of a Server. Only Engine is required.
type Deps struct {
	Engine *engine.Engine
	Logger *slog.Logger
	Tracer trace.Tracer
	RED    *observability.REDMetrics
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// Options configures the listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP front end of the engine.
type Server struct {
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// New builds the routing table. Nothing listens until Start.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("stamprally.server")
	}

	logger := deps.Logger.With("component", "server")
	api := &handlers{engine: deps.Engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan", api.scan)
	mux.HandleFunc("GET /api/progress", api.progress)
	mux.HandleFunc("POST /api/reset", api.reset)
	mux.HandleFunc("GET /api/history", api.history)
	mux.HandleFunc("DELETE /api/history", api.clearHistory)
	mux.HandleFunc("GET /api/checkpoints", api.checkpoints)
	mux.HandleFunc("GET /api/checkpoints/{id}/code", api.code)

	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/readyz", observability.ReadyHandler(map[string]observability.ReadyCheck{
		"store": func(ctx context.Context) error {
			_, err := deps.Engine.Snapshot(ctx)

			return err
		},
	}))

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	return &Server{
		handler: observability.HTTPMiddleware(deps.Tracer, deps.RED, mux),
		logger:  logger,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on opts.Addr and serves in the background.
func (s *Server) Start(ctx context.Context, opts Options) error {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.Addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  orDefault(opts.ReadTimeout, DefaultReadTimeout),
		WriteTimeout: orDefault(opts.WriteTimeout, DefaultWriteTimeout),
		IdleTimeout:  orDefault(opts.IdleTimeout, DefaultIdleTimeout),
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		serveErr := s.server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Warn("http server stopped", "error", serveErr)
		}
	}()

	s.logger.InfoContext(ctx, "http server listening", "addr", s.Addr())

	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
