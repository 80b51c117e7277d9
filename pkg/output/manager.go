package output

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
)

// Manager manages output formatting and provides high-level formatting methods.
type Manager struct {
	formatters    map[string]Formatter
	defaultFormat string
	config        *FormatConfig
}

// NewManager creates a new output manager with default formatters.
func NewManager() *Manager {
	m := &Manager{
		formatters:    make(map[string]Formatter),
		defaultFormat: "table",
		config:        NewFormatConfig(),
	}

	m.RegisterFormatter(NewJSONFormatter())
	m.RegisterFormatter(NewYAMLFormatter())
	m.RegisterFormatter(NewTableFormatter())

	return m
}

// RegisterFormatter registers a new formatter.
func (m *Manager) RegisterFormatter(formatter Formatter) {
	m.formatters[formatter.Name()] = formatter
}

// GetFormatter returns a formatter by name.
func (m *Manager) GetFormatter(name string) (Formatter, error) {
	formatter, ok := m.formatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("formatter '%s' not found (supported: %s)", name, strings.Join(m.GetSupportedFormats(), ", "))
	}
	return formatter, nil
}

// SetDefaultFormat sets the default output format.
func (m *Manager) SetDefaultFormat(format string) {
	m.defaultFormat = format
}

// SetConfig sets the format configuration.
func (m *Manager) SetConfig(config *FormatConfig) {
	m.config = config
}

// GetConfig returns the current format configuration.
func (m *Manager) GetConfig() *FormatConfig {
	return m.config
}

// Format formats data using the specified format.
func (m *Manager) Format(w io.Writer, data any, format string) error {
	return m.FormatWithConfig(w, data, format, m.config)
}

// FormatWithConfig formats data using the specified format and config.
// Empty collections print a message in table format instead of failing.
func (m *Manager) FormatWithConfig(w io.Writer, data any, format string, config *FormatConfig) error {
	if format == "" {
		format = m.defaultFormat
	}
	formatter, err := m.GetFormatter(format)
	if err != nil {
		return err
	}

	if !formatter.Supports(data) {
		if isEmpty(data) {
			return m.FormatEmpty(w, "", format)
		}
		return fmt.Errorf("formatter '%s' does not support data type %T", format, data)
	}
	return formatter.Format(w, data, config)
}

// Columns formats a listing in the given format. Table output uses cols;
// JSON and YAML output ignore them.
func (m *Manager) Columns(w io.Writer, data any, format string, cols ...Column) error {
	return m.FormatWithConfig(w, data, format, m.config.clone().WithColumns(cols...))
}

// FormatError formats an error.
func (m *Manager) FormatError(w io.Writer, err error, format string) error {
	if err == nil {
		return nil
	}
	if format == "" {
		format = m.defaultFormat
	}
	formatter, fmtErr := m.GetFormatter(format)
	if fmtErr != nil {
		return fmtErr
	}

	if f, ok := formatter.(interface {
		FormatError(io.Writer, error, *FormatConfig) error
	}); ok {
		return f.FormatError(w, err, m.config)
	}
	return formatter.Format(w, map[string]any{"error": err.Error()}, m.config)
}

// FormatEmpty formats an empty result with an optional message.
func (m *Manager) FormatEmpty(w io.Writer, message string, format string) error {
	if format == "" {
		format = m.defaultFormat
	}
	formatter, err := m.GetFormatter(format)
	if err != nil {
		return err
	}

	if f, ok := formatter.(interface {
		FormatEmpty(io.Writer, string, *FormatConfig) error
	}); ok {
		return f.FormatEmpty(w, message, m.config)
	}
	return formatter.Format(w, []any{}, m.config)
}

// Print is a convenience method to format and print to stdout.
func (m *Manager) Print(data any, format string) error {
	return m.Format(os.Stdout, data, format)
}

// PrintError is a convenience method to format and print an error to stderr.
func (m *Manager) PrintError(err error, format string) error {
	return m.FormatError(os.Stderr, err, format)
}

// IsFormatSupported checks if a format is supported.
func (m *Manager) IsFormatSupported(format string) bool {
	_, ok := m.formatters[strings.ToLower(format)]
	return ok
}

// GetSupportedFormats returns the sorted names of all supported formats.
func (m *Manager) GetSupportedFormats() []string {
	formats := make([]string, 0, len(m.formatters))
	for name := range m.formatters {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

func isEmpty(data any) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	case reflect.Ptr:
		return v.IsNil()
	}
	return false
}
