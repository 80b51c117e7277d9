// Package commands builds the vtsconf command tree on top of the engine
// packages.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/cli/builtin"
	"github.com/CliForge/vtsconf/pkg/install"
)

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(app *cli.App, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   app.Name,
		Short: "Back up, restore and transfer VTube Studio configuration",
		Long: `vtsconf manages the configuration of a VTube Studio installation.

It copies hotkeys and parameter mappings between models and items, archives
and restores the configuration tree, renames and duplicates models, and
saves settings profiles. Every change that overwrites a file takes a backup
first and is recorded in the history, so it can be undone.

The installation is taken from --install, $VTSCONF_INSTALL_PATH, or
install_path in the config file.`,
		Version:           app.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: builtin.Setup(app),
	}
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)
	cmd.SetIn(app.In)

	builtin.AddGlobalFlags(cmd, app)

	cmd.AddGroup(
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
		&cobra.Group{ID: "change", Title: "Changing configuration:"},
		&cobra.Group{ID: "safety", Title: "Backups and history:"},
	)
	for group, cmds := range map[string][]*cobra.Command{
		"inspect": {
			newDiscoverCommand(app),
			newListCommand(app, "models", "List the installation's models", install.KindModel),
			newListCommand(app, "items", "List the installation's items", install.KindItem),
			newDocCommand(app),
		},
		"change": {
			newTransferCommand(app),
			newRenameCommand(app),
			newDuplicateCommand(app),
			newProfileCommand(app),
		},
		"safety": {
			newBackupCommand(app),
			builtin.NewHistoryCommand(app),
			builtin.NewUndoCommand(app),
		},
	} {
		for _, c := range cmds {
			c.GroupID = group
			cmd.AddCommand(c)
		}
	}

	cmd.AddCommand(
		builtin.NewConfigCommand(app),
		builtin.NewVersionCommand(app, buildDate),
		builtin.NewCompletionCommand(app, cmd),
	)
	return cmd
}
