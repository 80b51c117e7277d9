package commands

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/archive"
	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/install"
)

// documentPath resolves arg to a configuration document. arg may be the
// document itself, an entity folder, or a model or item name in the
// configured installation.
func documentPath(app *cli.App, arg string) (string, error) {
	if fsutil.FileExists(arg) {
		return arg, nil
	}
	if fsutil.DirExists(arg) {
		return install.FindDocument(arg)
	}
	e, err := findEntity(app, arg)
	if err != nil {
		return "", err
	}
	return e.DocumentPath, nil
}

// entityFolder resolves arg to a model or item folder.
func entityFolder(app *cli.App, arg string) (string, error) {
	if fsutil.DirExists(arg) {
		return filepath.Clean(arg), nil
	}
	e, err := findEntity(app, arg)
	if err != nil {
		return "", err
	}
	return e.Folder, nil
}

func findEntity(app *cli.App, name string) (*install.Entity, error) {
	inst, err := app.Installation()
	if err != nil {
		return nil, err
	}
	return inst.FindEntity(name)
}

// backupPath resolves arg to an archive: a path, or a file name in the
// backup directory.
func backupPath(app *cli.App, arg string) string {
	if fsutil.FileExists(arg) || strings.ContainsAny(arg, `/\`) {
		return arg
	}
	return filepath.Join(app.Config.BackupDir, arg)
}

// parseCategories turns category names into archive categories.
func parseCategories(names []string) ([]archive.Category, error) {
	valid := archive.Categories()
	out := make([]archive.Category, 0, len(names))
	for _, n := range names {
		c := archive.Category(strings.ToLower(strings.TrimSpace(n)))
		if !slices.Contains(valid, c) {
			return nil, fmt.Errorf("unknown category %q (valid: %s)", n, categoryList())
		}
		out = append(out, c)
	}
	return out, nil
}

func categoryList() string {
	names := make([]string, 0, len(archive.Categories()))
	for _, c := range archive.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// selectFlags applies --only, --include and --exclude to base. --only
// replaces base entirely.
func selectFlags(base archive.Flags, only, include, exclude []string) (archive.Flags, error) {
	flags := base
	if len(only) > 0 {
		flags = archive.Flags{}
		cats, err := parseCategories(only)
		if err != nil {
			return flags, err
		}
		for _, c := range cats {
			flags.Set(c, true)
		}
		return flags, nil
	}
	for _, step := range []struct {
		names []string
		on    bool
	}{{include, true}, {exclude, false}} {
		cats, err := parseCategories(step.names)
		if err != nil {
			return flags, err
		}
		for _, c := range cats {
			flags.Set(c, step.on)
		}
	}
	return flags, nil
}
