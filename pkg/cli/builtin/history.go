package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/output"
	"github.com/CliForge/vtsconf/pkg/state"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(app *cli.App) *cobra.Command {
	var (
		limit      int
		kind       string
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded operations",
		Long: `Display the operations that changed an installation, newest first.

Examples:
  history                  # Show the 20 most recent operations
  history -n 50            # Show the 50 most recent operations
  history --kind transfer  # Show only transfers
  history --failed-only    # Show only failed operations`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.History()
			if err != nil {
				return err
			}
			entries := filterEntries(h.Recent(0), state.Kind(kind), failedOnly)
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return app.Print(entries,
				output.Column{Field: "id", Header: "ID"},
				output.Column{Field: "kind", Header: "KIND"},
				output.Column{Field: "target", Header: "TARGET", Width: 48},
				output.Column{Field: "success", Header: "OK"},
				output.Column{Field: "undone", Header: "UNDONE"},
				output.Column{Field: "summary", Header: "SUMMARY", Width: 48},
				output.Column{Field: "timestamp", Header: "WHEN", Transform: "ago"},
			)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show operations of this kind")
	cmd.Flags().BoolVar(&failedOnly, "failed-only", false, "Only show failed operations")
	_ = cmd.RegisterFlagCompletionFunc("kind", FixedCompletion(
		string(state.KindTransfer), string(state.KindRestore), string(state.KindRename),
		string(state.KindDuplicate), string(state.KindBackup), string(state.KindProfileApply),
	))

	cmd.AddCommand(newHistoryClearCommand(app))
	cmd.AddCommand(newHistoryStatsCommand(app))
	return cmd
}

func filterEntries(entries []*state.Entry, kind state.Kind, failedOnly bool) []*state.Entry {
	out := entries[:0]
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		if failedOnly && e.Success {
			continue
		}
		out = append(out, e)
	}
	return out
}

func newHistoryClearCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all history entries",
		Long:  "Remove all history entries. Backups referenced by them are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.History()
			if err != nil {
				return err
			}
			if err := app.Confirm(fmt.Sprintf("Clear %d history entries?", h.Count())); err != nil {
				return err
			}
			if err := h.Clear(); err != nil {
				return err
			}
			app.Successf("History cleared")
			return nil
		},
	}
}

func newHistoryStatsCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show history statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.History()
			if err != nil {
				return err
			}
			stats := h.GetStats()
			if app.Machine() {
				return app.Print(stats)
			}
			kinds := make([]string, 0, len(stats.ByKind))
			for k, n := range stats.ByKind {
				kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
			}
			sort.Strings(kinds)
			return app.Print(map[string]any{
				"total":     stats.Total,
				"succeeded": stats.Succeeded,
				"failed":    stats.Failed,
				"by kind":   strings.Join(kinds, " "),
				"first":     stats.First,
				"last":      stats.Last,
			})
		},
	}
}
