package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/report"
)

const (
	renderDirPerm     = 0o750
	renderDefaultFile = "stamprally.html"
)

// NewRenderCommand creates the render subcommand.
func NewRenderCommand(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write an HTML progress page with charts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runRender(ctx, a, output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", renderDefaultFile, "output HTML file")

	return cmd
}

func runRender(ctx context.Context, a *app, output string) error {
	p, err := a.engine.Snapshot(ctx)
	if err != nil {
		return err
	}

	history, err := a.engine.History(ctx, 0)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(output), renderDirPerm)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}

	err = report.RenderHTML(f, a.engine.Registry(), p, history)
	if err != nil {
		_ = f.Close()

		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", output, err)
	}

	a.logger.InfoContext(ctx, "progress page written", "path", output)

	return nil
}
