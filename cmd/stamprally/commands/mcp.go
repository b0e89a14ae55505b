package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/mcp"
	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
	"github.com/Sumatoshi-tech/stamprally/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the check-in engine as tools that AI agents can
discover and invoke:
  - stamp_scan: record a scanned payload
  - stamp_progress: current progress and next checkpoint
  - stamp_reset: discard all stamps (requires confirm=true)
  - stamp_history: recent scan attempts
  - stamp_checkpoints: list or search the catalog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// Stdout carries the protocol, so logs must stay on stderr.
			a, err := openApp(ctx, opts, observability.ModeMCP, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() {
				err = errors.Join(err, a.Close(ctx))
			}()

			srv := mcp.NewServer(mcp.ServerDeps{
				Engine:  a.engine,
				Version: version.Version,
				Logger:  a.logger,
				Metrics: a.red,
				Tracer:  a.providers.Tracer,
			})

			return srv.Run(ctx)
		},
	}
}
