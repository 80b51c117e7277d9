package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/state"
	"github.com/CliForge/vtsconf/pkg/transfer"
)

func newTransferCommand(app *cli.App) *cobra.Command {
	var s transfer.Settings

	cmd := &cobra.Command{
		Use:   "transfer SOURCE TARGET",
		Short: "Copy hotkeys and parameter mappings between documents",
		Long: `Copy hotkeys and parameter mappings from one model or item to another.

SOURCE and TARGET are documents, entity folders, or model or item names.
The target document is backed up before it is changed and the transfer can
be reverted with undo. Hotkeys whose media file exists in neither model are
skipped with a warning.

Examples:
  transfer Alice Bob --all-hotkeys
  transfer Alice Bob --hotkey 3f2a... --param FaceAngleX
  transfer Alice Bob --where 'Action == "ToggleExpression"' --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := documentPath(app, args[0])
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			target, err := documentPath(app, args[1])
			if err != nil {
				return fmt.Errorf("target: %w", err)
			}

			if !cmd.Flags().Changed("new-ids") {
				s.GenerateNewIDs = app.Config.Transfer.GenerateNewIDs
			}
			if !cmd.Flags().Changed("copy-media") {
				s.CopyMediaFiles = app.Config.Transfer.CopyMediaFiles
			}

			if !s.DryRun {
				if err := app.Confirm(fmt.Sprintf("Transfer into %s?", target)); err != nil {
					return err
				}
			}

			res := transfer.NewEngine("", app.Logger).Transfer(source, target, s)
			if !s.DryRun {
				app.Record(&state.Entry{
					Kind:       state.KindTransfer,
					Source:     source,
					Target:     target,
					Success:    res.Success,
					Summary:    res.ChangesSummary,
					BackupPath: res.BackupPath,
				})
			}
			return app.Conclude(&res.Report, res)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&s.AllHotkeys, "all-hotkeys", false, "Transfer every hotkey")
	f.BoolVar(&s.AllParameters, "all-params", false, "Transfer every parameter mapping")
	f.StringSliceVar(&s.HotkeyIDs, "hotkey", nil, "Hotkey ID to transfer (repeatable)")
	f.StringSliceVar(&s.ParameterNames, "param", nil, "Parameter mapping name to transfer (repeatable)")
	f.StringVar(&s.HotkeyFilter, "where", "", "Transfer hotkeys matching this expression")
	f.BoolVar(&s.DryRun, "dry-run", false, "Report what would change without writing")
	f.BoolVar(&s.CopyMediaFiles, "copy-media", true, "Copy referenced media files into the target (default from config)")
	f.BoolVar(&s.GenerateNewIDs, "new-ids", true, "Give transferred hotkeys new IDs (default from config)")
	cmd.MarkFlagsOneRequired("all-hotkeys", "all-params", "hotkey", "param", "where")
	return cmd
}
