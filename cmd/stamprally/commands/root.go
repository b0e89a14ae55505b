// Package commands implements the stamprally CLI subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

// Persistent flag names shared by every subcommand.
const (
	flagConfig  = "config"
	flagBackend = "backend"
	flagDataDir = "data-dir"
	flagCatalog = "catalog"
)

// globalOptions carries the persistent flags into openApp.
type globalOptions struct {
	configPath string
	backend    string
	dataDir    string
	catalog    string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "stamprally",
		Short: "Stamp rally check-in tracker",
		Long: `Stamprally records check-ins at event checkpoints from scanned codes.

Commands:
  scan         Record one or more scanned payloads
  status       Show collected stamps and overall progress
  checkpoints  List the checkpoint catalog
  history      Show recent scan attempts
  reset        Discard all collected stamps
  qr           Print the payload text for checkpoint codes
  render       Write an HTML progress page
  validate     Check a stored progress record against its schema
  serve        Run the HTTP API
  mcp          Run the MCP server on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, flagConfig, "", "config file (default: .stamprally.yaml in ., ~/.stamprally, /etc/stamprally)")
	flags.StringVar(&opts.backend, flagBackend, "", "storage backend override: memory, file, redis or sqlite")
	flags.StringVar(&opts.dataDir, flagDataDir, "", "data directory override for the file and sqlite backends")
	flags.StringVar(&opts.catalog, flagCatalog, "", "checkpoint catalog YAML override")

	rootCmd.AddCommand(
		NewScanCommand(opts),
		NewStatusCommand(opts),
		NewCheckpointsCommand(opts),
		NewHistoryCommand(opts),
		NewResetCommand(opts),
		NewQRCommand(opts),
		NewRenderCommand(opts),
		NewValidateCommand(opts),
		NewServeCommand(opts),
		NewMCPCommand(opts),
		NewVersionCommand(),
	)

	return rootCmd
}
