package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/archive"
	"github.com/CliForge/vtsconf/pkg/backup"
	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/cli/builtin"
	"github.com/CliForge/vtsconf/pkg/cli/interactive"
	"github.com/CliForge/vtsconf/pkg/output"
	"github.com/CliForge/vtsconf/pkg/state"
)

func newBackupCommand(app *cli.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, restore and manage installation backups",
		Long: `Archive the configuration of an installation and restore it later.

Categories: ` + categoryList() + `.
Plugin authorization tokens and backgrounds are left out unless included
explicitly or enabled in the config file.`,
	}
	cmd.AddCommand(
		newBackupCreateCommand(app),
		newBackupRestoreCommand(app),
		newBackupValidateCommand(app),
		newBackupListCommand(app),
		newBackupShowCommand(app),
		newBackupPruneCommand(app),
		newBackupOpenCommand(app),
	)
	return cmd
}

// baseFlags are the categories used when no selection flag is given.
func baseFlags(app *cli.App) archive.Flags {
	flags := archive.DefaultFlags()
	flags.PluginAuth = app.Config.Backup.IncludePluginAuth
	flags.Backgrounds = app.Config.Backup.IncludeBackgrounds
	return flags
}

type categoryFlags struct {
	only, include, exclude []string
}

func (c *categoryFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&c.only, "only", nil, "Only these categories")
	f.StringSliceVar(&c.include, "include", nil, "Add categories to the defaults")
	f.StringSliceVar(&c.exclude, "exclude", nil, "Remove categories from the defaults")
	cmd.MarkFlagsMutuallyExclusive("only", "include")
	cmd.MarkFlagsMutuallyExclusive("only", "exclude")

	names := make([]string, 0, len(archive.Categories()))
	for _, c := range archive.Categories() {
		names = append(names, string(c))
	}
	for _, name := range []string{"only", "include", "exclude"} {
		_ = cmd.RegisterFlagCompletionFunc(name, builtin.FixedCompletion(names...))
	}
}

func (c *categoryFlags) flags(app *cli.App) (archive.Flags, error) {
	return selectFlags(baseFlags(app), c.only, c.include, c.exclude)
}

type created struct {
	Path   string   `json:"path" yaml:"path"`
	Size   int64    `json:"size" yaml:"size"`
	Files  int      `json:"files" yaml:"files"`
	Pruned []string `json:"pruned,omitempty" yaml:"pruned,omitempty"`
}

func newBackupCreateCommand(app *cli.App) *cobra.Command {
	var (
		notes string
		cats  categoryFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Archive the installation's configuration",
		Long: `Write a new archive of the installation to the backup directory.

When backup.keep is set, the oldest archives beyond that count are removed
afterwards.

Examples:
  backup create --notes "before 1.30 update"
  backup create --only model_configs,item_configs
  backup create --include plugin_auth`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := cats.flags(app)
			if err != nil {
				return err
			}
			inst, err := app.Installation()
			if err != nil {
				return err
			}

			orch, bar := app.Backups()
			path, err := orch.Create(inst, flags, notes)
			if err != nil {
				_ = bar.Failure("Backup failed")
				app.Record(&state.Entry{Kind: state.KindBackup, Target: inst.Root, Summary: err.Error()})
				return err
			}
			_ = bar.Stop()

			out := created{Path: path, Files: bar.Done()}
			if fi, err := os.Stat(path); err == nil {
				out.Size = fi.Size()
			}
			if m, err := archive.ReadManifest(path); err == nil && m != nil {
				out.Files = len(m.Files)
			}
			app.Record(&state.Entry{
				Kind:    state.KindBackup,
				Target:  inst.Root,
				Success: true,
				Summary: fmt.Sprintf("%d files -> %s", out.Files, path),
			})

			if keep := app.Config.Backup.Keep; keep > 0 {
				out.Pruned, err = orch.Prune(keep)
				if err != nil {
					app.Warnf("Pruning old backups failed: %v", err)
				}
			}
			if err := app.Print(&out); err != nil {
				return err
			}
			app.Successf("Backup created: %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Notes stored in the archive manifest")
	cats.register(cmd)
	return cmd
}

func newBackupRestoreCommand(app *cli.App) *cobra.Command {
	var (
		cats     categoryFlags
		noSafety bool
	)

	cmd := &cobra.Command{
		Use:   "restore [ARCHIVE]",
		Short: "Restore an archive into the installation",
		Long: `Extract an archive into the installation.

ARCHIVE is a path or a file name in the backup directory. Without it, the
archive is chosen from a list. Before anything is written, the current
state of the selected categories is archived as a safety backup, so the
restore can be reverted with undo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := cats.flags(app)
			if err != nil {
				return err
			}
			inst, err := app.Installation()
			if err != nil {
				return err
			}
			orch, bar := app.Backups()
			defer func() { _ = bar.Stop() }()

			var path string
			if len(args) == 1 {
				path = backupPath(app, args[0])
			} else if path, err = chooseBackup(app, orch); err != nil {
				return err
			}

			if err := app.Confirm(fmt.Sprintf("Restore %s into %s?", path, inst.Root)); err != nil {
				return err
			}

			safety := app.Config.Backup.SafetyBackup
			if cmd.Flags().Changed("no-safety-backup") {
				safety = !noSafety
			}
			rep := orch.Restore(path, inst, flags, safety)
			_ = bar.Stop()

			app.Record(&state.Entry{
				Kind:       state.KindRestore,
				Source:     path,
				Target:     inst.Root,
				Success:    rep.Success,
				Summary:    fmt.Sprintf("%d restored, %d skipped", rep.FilesRestored, rep.FilesSkipped),
				BackupPath: rep.SafetyBackupPath,
			})
			return app.Conclude(&rep.Report, rep)
		},
	}

	cats.register(cmd)
	cmd.Flags().BoolVar(&noSafety, "no-safety-backup", false, "Do not archive the current state first (not recommended)")
	return cmd
}

// chooseBackup prompts for one of the archives in the backup directory.
func chooseBackup(app *cli.App, orch *backup.Orchestrator) (string, error) {
	if app.Prompter.DisableInteractive {
		return "", fmt.Errorf("no archive given")
	}
	backups, err := orch.List()
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", fmt.Errorf("no backups in %s", orch.Dir)
	}
	options := make([]string, len(backups))
	byOption := make(map[string]string, len(backups))
	for i, b := range backups {
		options[i] = fmt.Sprintf("%s  (%s)", b.Name, b.Created.Format("2006-01-02 15:04"))
		byOption[options[i]] = b.Path
	}
	choice, err := app.Prompter.Select(&interactive.SelectPromptOptions{
		Message: "Backup to restore",
		Options: options,
	})
	if err != nil {
		return "", err
	}
	return byOption[choice], nil
}

type validated struct {
	Path   string          `json:"path" yaml:"path"`
	Valid  bool            `json:"valid" yaml:"valid"`
	Issues []archive.Issue `json:"issues" yaml:"issues"`
}

func newBackupValidateCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ARCHIVE",
		Short: "Check an archive's manifest and member checksums",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := backupPath(app, args[0])
			codec, _ := app.Codec()

			spin := app.Spinner("Verifying " + path)
			valid, issues := codec.Validate(path)
			_ = spin.Stop()

			out := validated{Path: path, Valid: valid, Issues: issues}
			if out.Issues == nil {
				out.Issues = []archive.Issue{}
			}
			if app.Machine() {
				if err := app.Print(&out); err != nil {
					return err
				}
			} else if len(issues) > 0 {
				if err := app.Print(issues); err != nil {
					return err
				}
			}
			if !valid {
				errs := make([]string, 0, len(issues))
				for _, i := range issues {
					if i.Severity == archive.SeverityError {
						errs = append(errs, i.Message)
					}
				}
				return &cli.ReportError{Errors: errs}
			}
			app.Successf("%s is valid", path)
			return nil
		},
	}
}

type backupRow struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
	Reason  string    `json:"reason"`
	Files   int       `json:"files"`
	Notes   string    `json:"notes"`
}

func newBackupListCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List archives in the backup directory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _ := app.Backups()
			backups, err := orch.List()
			if err != nil {
				return err
			}
			if app.Machine() {
				if backups == nil {
					backups = []backup.Info{}
				}
				return app.Print(backups)
			}

			rows := make([]backupRow, 0, len(backups))
			for _, b := range backups {
				row := backupRow{Name: b.Name, Size: b.Size, Created: b.Created}
				switch {
				case b.Manifest != nil:
					row.Reason = b.Manifest.Reason
					row.Files = len(b.Manifest.Files)
					row.Notes = b.Manifest.Notes
				case b.Err != "":
					row.Notes = "unreadable: " + b.Err
				}
				rows = append(rows, row)
			}
			return app.Print(rows,
				output.Column{Field: "name", Header: "NAME"},
				output.Column{Field: "size", Header: "SIZE", Transform: "bytes"},
				output.Column{Field: "created", Header: "CREATED", Transform: "ago"},
				output.Column{Field: "reason", Header: "REASON"},
				output.Column{Field: "files", Header: "FILES"},
				output.Column{Field: "notes", Header: "NOTES", Width: 40},
			)
		},
	}
}

type manifestSummary struct {
	Path        string   `json:"path"`
	Date        string   `json:"date"`
	AppVersion  string   `json:"app_version"`
	InstallPath string   `json:"install_path"`
	Reason      string   `json:"reason"`
	Notes       string   `json:"notes"`
	Categories  []string `json:"categories"`
}

func newBackupShowCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ARCHIVE",
		Short: "Show an archive's manifest and contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := backupPath(app, args[0])
			entries, manifest, err := archive.List(path)
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(map[string]any{"path": path, "manifest": manifest, "entries": entries})
			}

			if manifest == nil {
				app.Warnf("%s has no manifest", path)
			} else {
				summary := manifestSummary{
					Path:        path,
					Date:        manifest.Date,
					AppVersion:  manifest.AppVersion,
					InstallPath: manifest.InstallPath,
					Reason:      manifest.Reason,
					Notes:       manifest.Notes,
				}
				for _, c := range archive.Categories() {
					if manifest.Options.Enabled(c) {
						summary.Categories = append(summary.Categories, string(c))
					}
				}
				if err := app.Print(&summary); err != nil {
					return err
				}
				fmt.Fprintln(app.Out)
			}
			return app.Print(entries,
				output.Column{Field: "name", Header: "NAME", Width: 64},
				output.Column{Field: "category", Header: "CATEGORY"},
				output.Column{Field: "size", Header: "SIZE", Transform: "bytes"},
				output.Column{Field: "modified", Header: "MODIFIED"},
			)
		},
	}
}

func newBackupPruneCommand(app *cli.App) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = app.Config.Backup.Keep
			}
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative")
			}
			if err := app.Confirm(fmt.Sprintf("Delete all but the newest %d backups in %s?", keep, app.Config.BackupDir)); err != nil {
				return err
			}
			orch, _ := app.Backups()
			removed, err := orch.Prune(keep)
			if err != nil {
				return err
			}
			if removed == nil {
				removed = []string{}
			}
			if err := app.Print(removed); err != nil {
				return err
			}
			app.Successf("Removed %d backup(s)", len(removed))
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Number of archives to keep (default from config)")
	return cmd
}

func newBackupOpenCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the backup directory in the file manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.Config.BackupDir
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := open.Run(dir); err != nil {
				return fmt.Errorf("failed to open %s: %w", dir, err)
			}
			app.Logger.Debug("opened backup directory", "dir", dir)
			return nil
		},
	}
}
