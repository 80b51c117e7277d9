package builtin

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/CliForge/vtsconf/pkg/cli"
)

// VersionInfo contains version information about the binary.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Built     string `json:"built,omitempty" yaml:"built,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
	Compiler  string `json:"compiler" yaml:"compiler"`
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(app *cli.App, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{SkipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := &VersionInfo{
				Version:   app.Version,
				GoVersion: runtime.Version(),
				Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
				Compiler:  runtime.Compiler,
			}
			if buildDate != "unknown" {
				info.Built = buildDate
			}
			return app.Print(info)
		},
	}
}
