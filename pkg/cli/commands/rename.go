package commands

import (
	"cmp"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/cli/interactive"
	"github.com/CliForge/vtsconf/pkg/rename"
	"github.com/CliForge/vtsconf/pkg/state"
)

func newRenameCommand(app *cli.App) *cobra.Command {
	var newID bool

	cmd := &cobra.Command{
		Use:   "rename ENTITY [NEW_NAME]",
		Short: "Rename a model or item",
		Long: `Rename a model or item: its display name, document file and folder.

The document is backed up inside the folder before it is rewritten. Without
NEW_NAME the new name is prompted for.

Examples:
  rename Alice Alice_Summer
  rename ./Live2DModels/Alice Alice_Summer --new-id`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := entityFolder(app, args[0])
			if err != nil {
				return err
			}

			var newName string
			if len(args) == 2 {
				newName = args[1]
			} else {
				newName, err = app.Prompter.Text(&interactive.TextPromptOptions{
					Message:  fmt.Sprintf("New name for %s", filepath.Base(folder)),
					Required: true,
					Validate: fsutil.CheckName,
				})
				if err != nil {
					return err
				}
			}
			if err := rename.ValidateRename(folder, newName); err != nil {
				return err
			}
			if err := app.Confirm(fmt.Sprintf("Rename %s to %s?", filepath.Base(folder), newName)); err != nil {
				return err
			}

			res := rename.New(app.Logger).Rename(folder, newName, newID)
			app.Record(&state.Entry{
				Kind:    state.KindRename,
				Source:  folder,
				Target:  cmp.Or(res.NewFolder, folder),
				Success: res.Success,
				Summary: res.Describe(),
			})
			return app.Conclude(&res.Report, res)
		},
	}

	cmd.Flags().BoolVar(&newID, "new-id", false, "Also give the entity a new identifier")
	return cmd
}

func newDuplicateCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate ENTITY NEW_NAME",
		Short: "Copy a model or item under a new name",
		Long: `Copy a model or item folder next to the original under NEW_NAME.

The copy's document is renamed and gets a new identifier, so the application
treats it as a separate entity. Backup copies are not duplicated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := entityFolder(app, args[0])
			if err != nil {
				return err
			}
			res := rename.New(app.Logger).Duplicate(folder, args[1])
			app.Record(&state.Entry{
				Kind:    state.KindDuplicate,
				Source:  folder,
				Target:  cmp.Or(res.NewFolder, folder),
				Success: res.Success,
				Summary: res.Describe(),
			})
			return app.Conclude(&res.Report, res)
		},
	}
}
