// Package cli holds the state shared by every command: resolved
// configuration, logger, output formatting, prompts and the operation
// history.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/CliForge/vtsconf/pkg/archive"
	"github.com/CliForge/vtsconf/pkg/backup"
	"github.com/CliForge/vtsconf/pkg/cli/interactive"
	"github.com/CliForge/vtsconf/pkg/config"
	"github.com/CliForge/vtsconf/pkg/install"
	"github.com/CliForge/vtsconf/pkg/output"
	"github.com/CliForge/vtsconf/pkg/profile"
	"github.com/CliForge/vtsconf/pkg/progress"
	"github.com/CliForge/vtsconf/pkg/report"
	"github.com/CliForge/vtsconf/pkg/state"
)

// App is created once per invocation. Flags are bound to its exported
// fields and Setup resolves everything else.
type App struct {
	Name    string
	Version string

	// Flag values.
	Overrides config.Overrides
	Verbose   bool
	Quiet     bool
	Yes       bool
	NoColor   bool

	Out io.Writer
	Err io.Writer
	In  io.Reader

	Loader   *config.Loader
	Config   *config.Config
	Logger   *slog.Logger
	Output   *output.Manager
	Prompter *interactive.Prompter

	history *state.History
	colors  bool
}

// NewApp creates an app writing to the process's standard streams.
func NewApp(name, version string) *App {
	return &App{
		Name:    name,
		Version: version,
		Out:     os.Stdout,
		Err:     os.Stderr,
		In:      os.Stdin,
		Loader:  config.NewLoader(name),
		Logger:  slog.New(slog.DiscardHandler),
		Output:  output.NewManager(),
	}
}

// Setup loads the configuration, applies flag overrides and builds the
// logger, formatter and prompter.
func (a *App) Setup() error {
	cfg, err := a.Loader.Load()
	if err != nil {
		return err
	}
	a.Config = cfg.Merge(a.Overrides)
	if err := config.NewValidator().Validate(a.Config); err != nil {
		return err
	}

	a.ApplyFlags()
	level := pterm.LogLevelWarn
	switch {
	case a.Quiet:
		level = pterm.LogLevelError
	case a.Verbose:
		level = pterm.LogLevelDebug
	}
	a.Logger = slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithWriter(a.Err).WithLevel(level)))
	a.Output.SetDefaultFormat(a.Config.Output)

	a.Prompter = interactive.NewPrompter(&interactive.PrompterConfig{
		Input:              a.In,
		Output:             a.Out,
		DisableColor:       a.NoColor,
		DisableInteractive: !isTerminal(a.In),
		AssumeYes:          a.Yes,
	})
	return nil
}

// ApplyFlags sets up colors and output formatting from the flags alone. It
// is enough for commands that run without configuration.
func (a *App) ApplyFlags() {
	a.colors = !a.NoColor && isTerminal(a.Out)
	if !a.colors {
		pterm.DisableColor()
	}
	a.Output.SetConfig(output.NewFormatConfig().WithColors(a.colors))
}

// Colors reports whether output may contain color codes.
func (a *App) Colors() bool {
	return a.colors
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Installation discovers the configured installation.
func (a *App) Installation() (*install.Installation, error) {
	inst, err := install.Discover(a.Config.InstallPath)
	if err != nil {
		return nil, fmt.Errorf("%w (set --install or install_path in %s)", err, a.Loader.ConfigPath())
	}
	a.Logger.Debug("installation found", "root", inst.Root, "config_root", inst.ConfigRoot)
	return inst, nil
}

// Codec returns an archive codec reporting per-file progress unless the
// output is quiet or machine-readable.
func (a *App) Codec() (*archive.Codec, *progress.Bar) {
	codec := archive.NewCodec(a.Config.AppVersion, a.Logger)
	bar := progress.NewBar(&progress.Config{
		Type:    progress.TypeBar,
		Enabled: a.showProgress(),
		Writer:  a.Err,
	}, 0)
	codec.Progress = bar.Func()
	return codec, bar
}

// Spinner returns a started spinner, or a no-op indicator when progress is
// not shown.
func (a *App) Spinner(message string) progress.Progress {
	p := progress.New(&progress.Config{
		Type:    progress.TypeSpinner,
		Enabled: a.showProgress(),
		Writer:  a.Err,
	}, 0)
	if err := p.Start(message); err != nil {
		a.Logger.Debug("spinner not started", "error", err)
	}
	return p
}

func (a *App) showProgress() bool {
	return !a.Quiet && !a.Machine() && a.Prompter != nil && !a.Prompter.DisableInteractive
}

// Backups returns the backup orchestrator for the configured directory.
func (a *App) Backups() (*backup.Orchestrator, *progress.Bar) {
	codec, bar := a.Codec()
	return backup.New(codec, a.Config.BackupDir, a.Logger), bar
}

// Profiles returns the profile manager for the configured directory.
func (a *App) Profiles() *profile.Manager {
	return profile.NewManager(a.Config.ProfilesDir, a.Config.AppVersion, a.Logger)
}

// History opens the operation history.
func (a *App) History() (*state.History, error) {
	if a.history != nil {
		return a.history, nil
	}
	h, err := state.Open(a.Config.HistoryPath(), a.Config.HistoryLimit)
	if err != nil {
		return nil, err
	}
	a.history = h
	return h, nil
}

// Record appends e to the history. Failing to record is logged, not
// returned: the operation itself already happened.
func (a *App) Record(e *state.Entry) {
	h, err := a.History()
	if err == nil {
		err = h.Record(e)
	}
	if err != nil {
		a.Logger.Warn("failed to record history", "kind", e.Kind, "error", err)
	}
}

func (a *App) format() string {
	switch {
	case a.Config != nil && a.Config.Output != "":
		return a.Config.Output
	case a.Overrides.Output != "":
		return a.Overrides.Output
	}
	return "table"
}

// Print writes data in the configured output format.
func (a *App) Print(data any, cols ...output.Column) error {
	if len(cols) > 0 {
		return a.Output.Columns(a.Out, data, a.format(), cols...)
	}
	return a.Output.Format(a.Out, data, a.format())
}

// Machine reports whether output is JSON or YAML.
func (a *App) Machine() bool {
	return a.format() != "table"
}

// Successf prints a success line in table output.
func (a *App) Successf(format string, args ...any) {
	if !a.Machine() && !a.Quiet {
		pterm.Success.WithWriter(a.Out).Printfln(format, args...)
	}
}

// Warnf prints a warning line in table output.
func (a *App) Warnf(format string, args ...any) {
	if !a.Machine() {
		pterm.Warning.WithWriter(a.Err).Printfln(format, args...)
	}
}

// Conclude prints the result of an engine operation and turns a failed
// report into an error, so the process exits non-zero.
func (a *App) Conclude(rep *report.Report, result any) error {
	if err := a.Print(result); err != nil {
		return err
	}
	if !a.Machine() {
		for _, w := range rep.Warnings {
			pterm.Warning.WithWriter(a.Err).Println(w)
		}
		if rep.Success && !a.Quiet {
			pterm.Success.WithWriter(a.Out).Println(strings.ToUpper(rep.Summary()[:1]) + rep.Summary()[1:])
		}
	}
	if !rep.Success {
		return &ReportError{Errors: rep.Errors}
	}
	return nil
}

// ReportError is returned when an operation's report failed.
type ReportError struct {
	Errors []string
}

func (e *ReportError) Error() string {
	if len(e.Errors) == 0 {
		return "operation failed"
	}
	return strings.Join(e.Errors, "; ")
}

// Confirm asks before a destructive operation. It returns
// interactive.ErrAborted if the user declines. Without a terminal and
// without --yes the operation is refused.
func (a *App) Confirm(message string) error {
	if a.Prompter.DisableInteractive && !a.Yes {
		return fmt.Errorf("%s: confirmation required, rerun with --yes", message)
	}
	return a.Prompter.Require(message)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	var rep *ReportError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, interactive.ErrAborted):
		return 130
	case errors.As(err, &rep):
		return 2
	}
	return 1
}
