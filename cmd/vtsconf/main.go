// Package main is the vtsconf command.
package main

import (
	"fmt"
	"os"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/cli/commands"
)

var (
	// Version is set at build time
	version = "0.1.0"
	// BuildDate is set at build time
	buildDate = "unknown"
)

func main() {
	app := cli.NewApp("vtsconf", version)
	if err := commands.NewRootCommand(app, buildDate).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
