package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/engine"
	"github.com/Sumatoshi-tech/stamprally/pkg/report"
	"github.com/Sumatoshi-tech/stamprally/pkg/scan"
)

// ErrScanFailed is returned when at least one payload could not be saved.
var ErrScanFailed = errors.New("scan could not be saved")

// NewScanCommand creates the scan subcommand.
func NewScanCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [payload...]",
		Short: "Record scanned checkpoint payloads",
		Long: `Record one check-in per payload argument. With no arguments, payloads are
read line by line from stdin until end of input, which suits keyboard-wedge
barcode readers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				printer := report.NewPrinter(cmd.OutOrStdout(), nil)

				if len(args) > 0 {
					return scanArgs(ctx, a.engine, printer, args)
				}

				return scanStream(ctx, a.engine, printer, scan.NewLineScanner(cmd.InOrStdin()))
			})
		},
	}
}

func scanArgs(ctx context.Context, eng *engine.Engine, printer *report.Printer, payloads []string) error {
	var failed bool

	for _, raw := range payloads {
		out := eng.Scan(ctx, raw)

		err := printer.Outcome(out)
		if err != nil {
			return err
		}

		failed = failed || out.Kind == engine.KindPersistenceFailed
	}

	if failed {
		return ErrScanFailed
	}

	return nil
}

// scanStream handles payloads until the scanner runs dry or is cancelled.
func scanStream(ctx context.Context, eng *engine.Engine, printer *report.Printer, scanner scan.Scanner) error {
	var failed bool

	for {
		out := eng.ScanFrom(ctx, scanner)
		if out.Kind == engine.KindScanUnavailable {
			break
		}

		err := printer.Outcome(out)
		if err != nil {
			return err
		}

		failed = failed || out.Kind == engine.KindPersistenceFailed
	}

	if failed {
		return fmt.Errorf("%w: see the messages above", ErrScanFailed)
	}

	return nil
}
