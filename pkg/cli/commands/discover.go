package commands

import (
	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/install"
	"github.com/CliForge/vtsconf/pkg/output"
)

type installationInfo struct {
	Root           string `json:"root" yaml:"root"`
	ConfigRoot     string `json:"config_root" yaml:"config_root"`
	GlobalSettings bool   `json:"global_settings" yaml:"global_settings"`
	Models         int    `json:"models" yaml:"models"`
	Items          int    `json:"items" yaml:"items"`
	PluginsDir     bool   `json:"plugins_dir" yaml:"plugins_dir"`
}

func newDiscoverCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Check the configured installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.Installation()
			if err != nil {
				return err
			}
			info := installationInfo{
				Root:           inst.Root,
				ConfigRoot:     inst.ConfigRoot,
				GlobalSettings: fsutil.FileExists(inst.GlobalSettingsPath()),
				PluginsDir:     fsutil.DirExists(inst.PluginsDir()),
			}
			if models, err := inst.ListModels(); err == nil {
				info.Models = len(models.Entities)
			}
			if items, err := inst.ListItems(); err == nil {
				info.Items = len(items.Entities)
			}
			return app.Print(info)
		},
	}
}

var entityColumns = []output.Column{
	{Field: "name", Header: "NAME"},
	{Field: "id", Header: "ID", Width: 12},
	{Field: "hotkeys", Header: "HOTKEYS"},
	{Field: "parameters", Header: "PARAMS"},
	{Field: "expressions", Header: "EXPRESSIONS"},
	{Field: "folder", Header: "FOLDER", Width: 48},
}

func newListCommand(app *cli.App, use, short string, kind install.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.Installation()
			if err != nil {
				return err
			}
			list := inst.ListModels
			if kind == install.KindItem {
				list = inst.ListItems
			}
			listing, err := list()
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(listing)
			}
			for _, s := range listing.Skipped {
				app.Warnf("Skipped %s: %s", s.Folder, s.Reason)
			}
			return app.Print(listing.Entities, entityColumns...)
		},
	}
}
