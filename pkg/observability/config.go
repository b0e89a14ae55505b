// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for every stamprally mode (CLI, MCP, HTTP server).
package observability

import "log/slog"

// AppMode identifies how the binary was launched.
type AppMode string

// Application modes.
const (
	ModeCLI   AppMode = "cli"
	ModeMCP   AppMode = "mcp"
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName        = "stamprally"
	defaultShutdownTimeoutSec = 5
)

// Config selects exporters, sampling and log format.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Environment labels the deployment, e.g. "venue" or "dev".
	Environment string
	Mode        AppMode

	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	// Empty disables OTLP export.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// DebugTrace samples every span and logs attributes the filter drops.
	DebugTrace  bool
	SampleRatio float64

	// Prometheus exposes instruments through Providers.MetricsHandler.
	Prometheus bool

	LogLevel slog.Level
	LogJSON  bool

	ShutdownTimeoutSec int
}

// DefaultConfig returns the zero-config CLI setup: info logs as text and no
// telemetry export.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
