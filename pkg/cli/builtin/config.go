package builtin

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(app *cli.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Show and change the tool's own settings.

Settings are read from the embedded defaults, then the user config file,
then ` + strings.ToUpper(app.Name) + `_* environment variables, then flags.

Keys: ` + strings.Join(config.Keys(), ", "),
	}

	cmd.AddCommand(newConfigShowCommand(app))
	cmd.AddCommand(newConfigGetCommand(app))
	cmd.AddCommand(newConfigSetCommand(app))
	cmd.AddCommand(newConfigPathCommand(app))
	return cmd
}

func newConfigShowCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Print(app.Config)
		},
	}
}

func newConfigGetCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Get a configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := app.Config.Get(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(app.Out, value)
			return err
		},
	}
}

func newConfigSetCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the user config file",
		Long: `Set a value in the user config file.

Examples:
  config set install_path "C:/Program Files (x86)/Steam/steamapps/common/VTube Studio"
  config set backup.keep 20
  config set transfer.copy_media_files false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Reloaded so flag overrides stay out of the file.
			cfg, err := app.Loader.Load()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.NewValidator().Validate(cfg); err != nil {
				return err
			}
			if err := app.Loader.Save(cfg); err != nil {
				return err
			}
			app.Successf("Set %s = %s", args[0], args[1])
			return nil
		},
	}
}

func newConfigPathCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Show the user config file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{SkipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(app.Out, app.Loader.ConfigPath())
			return err
		},
	}
}
