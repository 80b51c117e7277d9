// Package builtin provides the commands every invocation carries regardless
// of the installation: global flags, version, completion, configuration and
// the operation history.
package builtin

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/config"
)

// SkipSetup marks commands that run without loading configuration.
const SkipSetup = "skip-setup"

// AddGlobalFlags binds the persistent flags to app.
func AddGlobalFlags(cmd *cobra.Command, app *cli.App) {
	pf := cmd.PersistentFlags()
	addLocationFlags(pf, app)
	addOutputFlags(pf, app)
	pf.BoolVarP(&app.Yes, "yes", "y", false, "Skip confirmation prompts")

	_ = cmd.RegisterFlagCompletionFunc("output", FixedCompletion(config.OutputFormats...))
}

func addLocationFlags(pf *pflag.FlagSet, app *cli.App) {
	pf.StringVar(&app.Overrides.InstallPath, "install", "", "VTube Studio installation or StreamingAssets folder")
	pf.StringVar(&app.Overrides.BackupDir, "backup-dir", "", "Directory for backup archives")
	pf.StringVar(&app.Overrides.ProfilesDir, "profiles-dir", "", "Directory for settings profiles")
}

func addOutputFlags(pf *pflag.FlagSet, app *cli.App) {
	pf.StringVarP(&app.Overrides.Output, "output", "o", "",
		fmt.Sprintf("Output format (%s)", strings.Join(config.OutputFormats, "|")))
	pf.BoolVarP(&app.Verbose, "verbose", "v", false, "Log every step")
	pf.BoolVarP(&app.Quiet, "quiet", "q", false, "Only log errors")
	pf.BoolVar(&app.NoColor, "no-color", false, "Disable colored output")
}

// ValidateFlags rejects contradictory global flags.
func ValidateFlags(app *cli.App) error {
	if app.Verbose && app.Quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	if app.Overrides.Output != "" && !slices.Contains(config.OutputFormats, app.Overrides.Output) {
		return fmt.Errorf("invalid output format %q (valid: %s)", app.Overrides.Output, strings.Join(config.OutputFormats, ", "))
	}
	return nil
}

// Setup is the root command's PersistentPreRunE.
func Setup(app *cli.App) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(app); err != nil {
			return err
		}
		app.ApplyFlags()
		for c := cmd; c != nil; c = c.Parent() {
			if c.Annotations[SkipSetup] == "true" {
				return nil
			}
		}
		return app.Setup()
	}
}

// CompletionFunc is a helper type for dynamic completion functions.
type CompletionFunc func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective)

// FixedCompletion returns a completion function with fixed values.
func FixedCompletion(values ...string) CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}
