package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/report"
)

// ErrResetAborted is returned when the user declines the confirmation prompt.
var ErrResetAborted = errors.New("reset aborted")

const resetPrompt = "This discards every collected stamp. Continue? [y/N] "

// NewResetCommand creates the reset subcommand.
func NewResetCommand(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all collected stamps",
		Long: `Reset replaces the progress record with an empty one. The scan history is
kept; use "history --clear" to drop it. Without --yes the command asks for
confirmation on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), resetPrompt)
				if err != nil {
					return err
				}

				if !ok {
					return ErrResetAborted
				}
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.engine.Reset(ctx)
				if err != nil {
					return err
				}

				return report.NewPrinter(cmd.OutOrStdout(), nil).Progress(a.engine.Registry(), p)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	_, err := fmt.Fprint(out, prompt)
	if err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
