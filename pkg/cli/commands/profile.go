package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/cli/builtin"
	"github.com/CliForge/vtsconf/pkg/output"
	"github.com/CliForge/vtsconf/pkg/profile"
	"github.com/CliForge/vtsconf/pkg/state"
)

func newProfileCommand(app *cli.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Save and apply snapshots of the global settings",
		Long: `Profiles are named snapshots of the global settings document, optionally
narrowed to one category of keys (tracking, api, ui).`,
	}
	cmd.AddCommand(
		newProfileSaveCommand(app),
		newProfileListCommand(app),
		newProfileShowCommand(app),
		newProfileDeleteCommand(app),
		newProfileExportCommand(app),
		newProfileImportCommand(app),
		newProfileCompareCommand(app),
		newProfileApplyCommand(app),
	)
	return cmd
}

// profileNames completes the names of saved profiles. Completion runs
// without the root's pre-run hook, so the configuration is loaded here.
func profileNames(app *cli.App) builtin.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if app.Config == nil && app.Setup() != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		infos, err := app.Profiles().List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		names := make([]string, 0, len(infos))
		for _, i := range infos {
			names = append(names, i.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func newProfileSaveCommand(app *cli.App) *cobra.Command {
	var (
		category    string
		description string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save the installation's global settings as a profile",
		Long: `Save the current global settings as profile NAME, replacing any profile of
that name.

Examples:
  profile save streaming
  profile save webcam --category tracking --tags home,desk`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := profile.ParseCategory(category)
			if err != nil {
				return err
			}
			inst, err := app.Installation()
			if err != nil {
				return err
			}
			p, err := app.Profiles().SaveFromInstallation(args[0], inst.GlobalSettingsPath(), c, description, tags)
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(p)
			}
			app.Successf("Saved profile %q (%s, %d settings)", p.Name, p.Category, profile.Count(p.Settings))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "complete", "Category of settings to keep")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Profile description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma-separated tags")
	names := make([]string, 0, len(profile.Categories()))
	for _, c := range profile.Categories() {
		names = append(names, string(c))
	}
	_ = cmd.RegisterFlagCompletionFunc("category", builtin.FixedCompletion(names...))
	return cmd
}

func newProfileListCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := app.Profiles().List()
			if err != nil {
				return err
			}
			if infos == nil {
				infos = []profile.Info{}
			}
			return app.Print(infos,
				output.Column{Field: "name", Header: "NAME"},
				output.Column{Field: "category", Header: "CATEGORY"},
				output.Column{Field: "entries", Header: "SETTINGS"},
				output.Column{Field: "tags", Header: "TAGS"},
				output.Column{Field: "description", Header: "DESCRIPTION", Width: 40},
				output.Column{Field: "created", Header: "CREATED", Transform: "ago"},
			)
		},
	}
}

func newProfileShowCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:               "show NAME",
		Short:             "Show a profile's settings",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Profiles().Load(args[0])
			if err != nil {
				return err
			}
			if app.Machine() {
				var settings any
				if err := json.Unmarshal(p.Settings, &settings); err != nil {
					return err
				}
				return app.Print(map[string]any{
					"name":        p.Name,
					"category":    p.Category,
					"created":     p.CreatedDate,
					"vts_version": p.AppVersion,
					"description": p.Description,
					"tags":        p.Tags,
					"settings":    settings,
				})
			}
			return app.Print(profile.Entries(p.Settings),
				output.Column{Field: "type", Header: "TYPE"},
				output.Column{Field: "key", Header: "KEY"},
				output.Column{Field: "value", Header: "VALUE", Width: 48},
			)
		},
	}
}

func newProfileDeleteCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:               "delete NAME",
		Aliases:           []string{"rm"},
		Short:             "Delete a profile",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Confirm(fmt.Sprintf("Delete profile %q?", args[0])); err != nil {
				return err
			}
			if err := app.Profiles().Delete(args[0]); err != nil {
				return err
			}
			app.Successf("Deleted profile %q", args[0])
			return nil
		},
	}
}

func newProfileExportCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:               "export NAME FILE",
		Short:             "Copy a profile to a file",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: profileNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Profiles().Export(args[0], args[1]); err != nil {
				return err
			}
			app.Successf("Exported %q to %s", args[0], args[1])
			return nil
		},
	}
}

func newProfileImportCommand(app *cli.App) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Add a profile file to the profiles directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := app.Profiles().Import(args[0], overwrite)
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(map[string]string{"name": name})
			}
			app.Successf("Imported profile %q", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing profile of the same name")
	return cmd
}

type difference struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	First  any    `json:"first"`
	Second any    `json:"second"`
}

func newProfileCompareCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:               "compare FIRST SECOND",
		Aliases:           []string{"diff"},
		Short:             "Show how two profiles differ",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: profileNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp, err := app.Profiles().Compare(args[0], args[1])
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(cmp)
			}
			if cmp.Equal() {
				app.Successf("Profiles %q and %q have the same settings", args[0], args[1])
				return nil
			}

			const missing = "-"
			var rows []difference
			for _, e := range cmp.OnlyInFirst {
				rows = append(rows, difference{Key: e.Key, Type: e.Type, First: e.Value, Second: missing})
			}
			for _, e := range cmp.OnlyInSecond {
				rows = append(rows, difference{Key: e.Key, Type: e.Type, First: missing, Second: e.Value})
			}
			for _, c := range cmp.Different {
				rows = append(rows, difference{Key: c.Key, Type: c.Type, First: c.Value, Second: c.Other})
			}
			return app.Print(rows,
				output.Column{Field: "key", Header: "KEY"},
				output.Column{Field: "type", Header: "TYPE"},
				output.Column{Field: "first", Header: args[0], Width: 32},
				output.Column{Field: "second", Header: args[1], Width: 32},
			)
		},
	}
}

func newProfileApplyCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "apply NAME",
		Short: "Merge a profile into the installation's global settings",
		Long: `Write the settings of profile NAME into the global settings document.

Entries are matched by key: existing ones get the profile's value and missing
ones are added. Everything else in the document is kept. The document is
backed up first and the change can be reverted with undo.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: profileNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.Installation()
			if err != nil {
				return err
			}
			target := inst.GlobalSettingsPath()
			if err := app.Confirm(fmt.Sprintf("Apply profile %q to %s?", args[0], target)); err != nil {
				return err
			}

			res := app.Profiles().Apply(args[0], target)
			app.Record(&state.Entry{
				Kind:       state.KindProfileApply,
				Source:     args[0],
				Target:     target,
				Success:    res.Success,
				Summary:    fmt.Sprintf("%d updated, %d added", res.Updated, res.Added),
				BackupPath: res.BackupPath,
			})
			return app.Conclude(&res.Report, res)
		},
	}
}
