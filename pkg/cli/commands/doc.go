package commands

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/CliForge/vtsconf/pkg/cli"
	"github.com/CliForge/vtsconf/pkg/output"
	"github.com/CliForge/vtsconf/pkg/transfer"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

func newDocCommand(app *cli.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Inspect configuration documents",
		Long: `Inspect a model or item configuration document.

DOCUMENT is a .vtube.json file, a model or item folder, or the name of a
model or item in the configured installation.`,
	}
	cmd.AddCommand(newDocValidateCommand(app))
	cmd.AddCommand(newDocShowCommand(app))
	cmd.AddCommand(newDocHotkeysCommand(app))
	cmd.AddCommand(newDocParamsCommand(app))
	return cmd
}

func loadDocument(app *cli.App, arg string) (string, *vtube.Document, error) {
	path, err := documentPath(app, arg)
	if err != nil {
		return "", nil, err
	}
	doc, err := vtube.Load(path)
	if err != nil {
		return "", nil, err
	}
	app.Logger.Debug("document loaded", "path", path, "hotkeys", len(doc.Hotkeys), "parameters", len(doc.Parameters))
	return path, doc, nil
}

type validation struct {
	vtube.ValidationResult `yaml:",inline"`

	Path         string   `json:"path" yaml:"path"`
	MissingFiles []string `json:"missing_files,omitempty" yaml:"missing_files,omitempty"`
}

func newDocValidateCommand(app *cli.App) *cobra.Command {
	var checkFiles bool

	cmd := &cobra.Command{
		Use:   "validate DOCUMENT",
		Short: "Check a document's structure and media references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, doc, err := loadDocument(app, args[0])
			if err != nil {
				return err
			}
			out := validation{ValidationResult: *vtube.Validate(doc), Path: path}
			if checkFiles {
				files := vtube.CheckFileReferences(doc.Hotkeys, filepath.Dir(path))
				out.MissingFiles = files.Warnings
				for _, e := range files.Errors {
					out.AddError(e)
				}
			}
			if err := app.Print(&out); err != nil {
				return err
			}
			if !out.Valid {
				return &cli.ReportError{Errors: out.Errors}
			}
			app.Successf("%s is valid", filepath.Base(path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkFiles, "check-files", true, "Check that hotkey media files exist")
	return cmd
}

func newDocShowCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "show DOCUMENT",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := loadDocument(app, args[0])
			if err != nil {
				return err
			}
			raw, err := doc.Encode()
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(json.RawMessage(raw))
			}
			formatted := pretty.Pretty(raw)
			if app.Colors() {
				formatted = pretty.Color(formatted, nil)
			}
			_, err = app.Out.Write(formatted)
			return err
		},
	}
}

type hotkeyRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Action   string `json:"action"`
	File     string `json:"file"`
	Keys     string `json:"keys"`
	IsGlobal bool   `json:"global"`
	IsActive bool   `json:"active"`
}

// filterHotkeys returns the hotkeys matching the filter expression, or all
// of them when where is empty.
func filterHotkeys(hotkeys []vtube.Hotkey, where string) ([]vtube.Hotkey, error) {
	if where == "" {
		return hotkeys, nil
	}
	filter, err := transfer.CompileFilter(where)
	if err != nil {
		return nil, err
	}
	out := []vtube.Hotkey{}
	for i := range hotkeys {
		ok, err := filter.Match(&hotkeys[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, hotkeys[i])
		}
	}
	return out, nil
}

func newDocHotkeysCommand(app *cli.App) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "hotkeys DOCUMENT",
		Short: "List a document's hotkeys",
		Long: `List a document's hotkeys.

--where takes the same filter expression as transfer, for example:
  doc hotkeys Alice --where 'Action == "ToggleExpression" && IsActive'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := loadDocument(app, args[0])
			if err != nil {
				return err
			}
			hotkeys, err := filterHotkeys(doc.Hotkeys, where)
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(hotkeys)
			}
			rows := make([]hotkeyRow, len(hotkeys))
			for i, h := range hotkeys {
				rows[i] = hotkeyRow{
					ID: h.ID, Name: h.Name, Action: string(h.Action), File: h.File,
					Keys: h.KeybindString(), IsGlobal: h.IsGlobal, IsActive: h.IsActive,
				}
			}
			return app.Print(rows,
				output.Column{Field: "id", Header: "ID", Width: 12},
				output.Column{Field: "name", Header: "NAME"},
				output.Column{Field: "action", Header: "ACTION"},
				output.Column{Field: "file", Header: "FILE", Width: 40},
				output.Column{Field: "keys", Header: "KEYS"},
				output.Column{Field: "active", Header: "ACTIVE"},
			)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "Filter expression over ID, Name, Action, File, Folder, Keybind, IsGlobal, IsActive")
	return cmd
}

func newDocParamsCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "params DOCUMENT",
		Short: "List a document's parameter mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := loadDocument(app, args[0])
			if err != nil {
				return err
			}
			if app.Machine() {
				return app.Print(doc.Parameters)
			}
			return app.Print(doc.Parameters,
				output.Column{Field: "Name", Header: "NAME"},
				output.Column{Field: "Input", Header: "INPUT"},
				output.Column{Field: "Output", Header: "OUTPUT"},
				output.Column{Field: "Smoothing", Header: "SMOOTHING"},
			)
		},
	}
}
