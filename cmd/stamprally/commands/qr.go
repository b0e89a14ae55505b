package commands

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/scan"
)

// ErrNoCheckpoint is returned when qr is given neither an id nor --all.
var ErrNoCheckpoint = errors.New("checkpoint id is required (or use --all)")

// NewQRCommand creates the qr subcommand.
func NewQRCommand(opts *globalOptions) *cobra.Command {
	var (
		formatName string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "qr [checkpoint-id]",
		Short: "Print the payload text to encode in checkpoint codes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return ErrNoCheckpoint
			}

			format, err := scan.ParseFormat(formatName)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			parser := scan.NewRegistryParser(reg, scan.WithScheme(cfg.Scan.Scheme))

			if !all {
				text, encErr := parser.Encode(args[0], format)
				if encErr != nil {
					return encErr
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)

				return err
			}

			tbl := table.NewWriter()
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"ID", "Name", "Payload"})

			for _, cp := range reg.All() {
				text, encErr := parser.Encode(cp.ID, format)
				if encErr != nil {
					return encErr
				}

				tbl.AppendRow(table.Row{cp.ID, cp.Name, text})
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())

			return err
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(scan.FormatScheme), "payload format: checkpoint, json or direct")
	cmd.Flags().BoolVar(&all, "all", false, "print payloads for every checkpoint")

	return cmd
}
