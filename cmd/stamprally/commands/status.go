package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/stamprally/pkg/registry"
	"github.com/Sumatoshi-tech/stamprally/pkg/report"
)

// Errors for listing commands.
var (
	ErrUnknownSortKey = errors.New("unknown sort key (use order, name or area)")
	ErrNegativeLimit  = errors.New("limit must not be negative")
)

// NewStatusCommand creates the status subcommand.
func NewStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show collected stamps and overall progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.engine.Snapshot(ctx)
				if err != nil {
					return err
				}

				return report.NewPrinter(cmd.OutOrStdout(), nil).Progress(a.engine.Registry(), p)
			})
		},
	}
}

// NewCheckpointsCommand creates the checkpoints subcommand.
func NewCheckpointsCommand(opts *globalOptions) *cobra.Command {
	var (
		sortKey string
		keyword string
	)

	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List the checkpoint catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := parseSortKey(sortKey)
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

			list := reg.Sorted(key)
			if keyword != "" {
				list = filterSorted(list, reg.Search(keyword))
			}

			return report.NewPrinter(cmd.OutOrStdout(), nil).Checkpoints(list)
		},
	}

	cmd.Flags().StringVar(&sortKey, "sort", string(registry.SortByOrder), "sort key: order, name or area")
	cmd.Flags().StringVarP(&keyword, "search", "s", "", "filter by keyword in name, area or description")

	return cmd
}

func parseSortKey(name string) (registry.SortKey, error) {
	switch key := registry.SortKey(strings.ToLower(name)); key {
	case registry.SortByOrder, registry.SortByName, registry.SortByArea:
		return key, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, name)
	}
}

// filterSorted keeps the entries of sorted that also appear in matches.
func filterSorted(sorted, matches []registry.Checkpoint) []registry.Checkpoint {
	keep := make(map[string]struct{}, len(matches))
	for _, cp := range matches {
		keep[cp.ID] = struct{}{}
	}

	out := make([]registry.Checkpoint, 0, len(matches))

	for _, cp := range sorted {
		if _, ok := keep[cp.ID]; ok {
			out = append(out, cp)
		}
	}

	return out
}

// NewHistoryCommand creates the history subcommand.
func NewHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		limit int
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan attempts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("%w: %d", ErrNegativeLimit, limit)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if clearAll {
					err := a.engine.ClearHistory(ctx)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(cmd.OutOrStdout(), "Scan history cleared.")

					return err
				}

				entries, err := a.engine.History(ctx, limit)
				if err != nil {
					return err
				}

				return report.NewPrinter(cmd.OutOrStdout(), nil).History(entries)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete the scan history instead of showing it")

	return cmd
}
