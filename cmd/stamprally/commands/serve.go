package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/observability"
	"github.com/Sumatoshi-tech/stamprally/pkg/server"
)

// NewServeCommand creates the serve subcommand.
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes the check-in engine as a JSON API:

  POST   /api/scan                  record a scanned payload
  GET    /api/progress              current progress, stats and next checkpoint
  POST   /api/reset                 discard all stamps ({"confirm": true})
  GET    /api/history               recent scan attempts
  DELETE /api/history               drop the scan history
  GET    /api/checkpoints           catalog (?sort=order|name|area, ?q=keyword)
  GET    /api/checkpoints/{id}/code payload text for a printed code

plus /healthz, /readyz and, when enabled, a Prometheus /metrics endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, addr, cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")

	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, addr string, cmd *cobra.Command) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, opts, observability.ModeServe, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, a.Close(ctx))
	}()

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	srv := server.New(server.Deps{
		Engine:  a.engine,
		Logger:  a.logger,
		Tracer:  a.providers.Tracer,
		RED:     a.red,
		Metrics: a.providers.MetricsHandler,
	})

	err = srv.Start(ctx, server.Options{
		Addr:         addr,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())
	if err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.logger.InfoContext(shutdownCtx, "shutting down http server")

	return srv.Shutdown(shutdownCtx)
}
