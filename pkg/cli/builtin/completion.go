package builtin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
)

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

// NewCompletionCommand creates a new completion command for rootCmd.
func NewCompletionCommand(app *cli.App, rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: fmt.Sprintf(`Generate a shell completion script for %[1]s.

Bash:
  $ %[1]s completion bash > ~/.local/share/bash-completion/completions/%[1]s

Zsh:
  $ %[1]s completion zsh > "${fpath[1]}/_%[1]s"

Fish:
  $ %[1]s completion fish > ~/.config/fish/completions/%[1]s.fish

PowerShell:
  PS> %[1]s completion powershell | Out-String | Invoke-Expression`, app.Name),
		ValidArgs:             completionShells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		Annotations:           map[string]string{SkipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletionV2(app.Out, true)
			case "zsh":
				return rootCmd.GenZshCompletion(app.Out)
			case "fish":
				return rootCmd.GenFishCompletion(app.Out, true)
			default:
				return rootCmd.GenPowerShellCompletionWithDesc(app.Out)
			}
		},
	}
}
