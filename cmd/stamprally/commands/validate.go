package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/kv"
	"github.com/Sumatoshi-tech/stamprally/pkg/store"
)

// NewValidateCommand creates the validate subcommand.
func NewValidateCommand(opts *globalOptions) *cobra.Command {
	var printSchema bool

	cmd := &cobra.Command{
		Use:   "validate [record.json]",
		Short: "Check a progress record against the record schema",
		Long: `Validate checks the given JSON file, or the record held by the configured
backend when no file is given, against the embedded JSON Schema.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if printSchema {
				_, err := out.Write(store.RecordSchema())

				return err
			}

			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read record: %w", err)
				}

				return reportCheck(cmd, args[0], data)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				data, err := a.backend.Get(ctx, store.ProgressKey)
				if errors.Is(err, kv.ErrNotFound) {
					_, err = fmt.Fprintln(out, "No progress record stored yet.")

					return err
				}

				if err != nil {
					return fmt.Errorf("read record: %w", err)
				}

				return reportCheck(cmd, a.cfg.Storage.Backend+":"+store.ProgressKey, data)
			})
		},
	}

	cmd.Flags().BoolVar(&printSchema, "schema", false, "print the record schema and exit")

	return cmd
}

func reportCheck(cmd *cobra.Command, source string, data []byte) error {
	err := store.CheckRecord(data)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", source)

	return err
}
