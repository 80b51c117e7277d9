package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/pretty"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	opts pretty.Options
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		opts: pretty.Options{Width: 80, Prefix: "", Indent: "  "},
	}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Supports returns true if the formatter can handle the given data type.
// JSON formatter can handle any data type.
func (f *JSONFormatter) Supports(data any) bool {
	return true
}

// Format formats the data as JSON and writes it to the writer.
func (f *JSONFormatter) Format(w io.Writer, data any, config *FormatConfig) error {
	if config == nil {
		config = NewFormatConfig()
	}

	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		if !json.Valid(v) {
			return fmt.Errorf("data is not valid JSON")
		}
		raw = v
	default:
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	if config.Pretty {
		raw = pretty.PrettyOptions(raw, &f.opts)
	} else {
		raw = append(pretty.Ugly(raw), '\n')
	}
	if config.Colors && config.Pretty {
		raw = pretty.Color(raw, nil)
	}
	_, err := w.Write(raw)
	return err
}

// SetIndent sets the indentation string for pretty printing.
func (f *JSONFormatter) SetIndent(indent string) *JSONFormatter {
	f.opts.Indent = indent
	return f
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error, config *FormatConfig) error {
	return f.Format(w, map[string]any{
		"success": false,
		"error":   err.Error(),
	}, config)
}
