package builtin

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/archive"
	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/install"
	"github.com/CliForge/vtsconf/pkg/state"
	"github.com/CliForge/vtsconf/pkg/transfer"
)

// NewUndoCommand creates the undo command.
func NewUndoCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "undo [history-id]",
		Short: "Undo the latest transfer, profile apply or restore",
		Long: `Put back the backup taken by a recorded operation.

Transfers and profile applies restore the document backed up before the
change. Restores put back the safety archive taken before the restore.
Without an ID the newest operation that can be undone is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := app.History()
			if err != nil {
				return err
			}

			var entry *state.Entry
			if len(args) == 1 {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid history id %q", args[0])
				}
				if entry, err = h.Get(id); err != nil {
					return err
				}
				if !entry.CanUndo() {
					return fmt.Errorf("history entry %d (%s) cannot be undone", entry.ID, entry.Kind)
				}
			} else {
				var ok bool
				if entry, ok = h.LastUndoable(); !ok {
					return fmt.Errorf("nothing to undo")
				}
			}

			if err := app.Confirm(fmt.Sprintf("Undo %s of %s from %s?", entry.Kind, entry.Target, entry.Timestamp.Format("2006-01-02 15:04:05"))); err != nil {
				return err
			}
			if err := Undo(app, entry); err != nil {
				return err
			}
			if err := h.MarkUndone(entry.ID); err != nil {
				return err
			}
			app.Successf("Undid %s #%d: restored %s", entry.Kind, entry.ID, entry.BackupPath)
			return nil
		},
	}
}

// Undo puts back the backup recorded in entry.
func Undo(app *cli.App, entry *state.Entry) error {
	switch entry.Kind {
	case state.KindTransfer, state.KindProfileApply:
		return transfer.RestoreBackup(entry.BackupPath, entry.Target)
	case state.KindRestore:
		inst, err := install.Discover(entry.Target)
		if err != nil {
			return err
		}
		var flags archive.Flags
		for _, c := range archive.Categories() {
			flags.Set(c, true)
		}
		orch, bar := app.Backups()
		rep := orch.Restore(entry.BackupPath, inst, flags, false)
		_ = bar.Stop()
		if !rep.Success {
			return &cli.ReportError{Errors: rep.Errors}
		}
		return nil
	}
	return fmt.Errorf("%s operations cannot be undone", entry.Kind)
}
