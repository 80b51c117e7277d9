// Package output renders command results as tables, JSON or YAML.
package output

import (
	"io"
)

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes data to w.
	Format(w io.Writer, data any, config *FormatConfig) error

	// Name returns the name of the formatter (e.g., "json", "yaml", "table").
	Name() string

	// Supports returns true if the formatter can handle the given data type.
	Supports(data any) bool
}

// Column selects and labels one field of a row in table output.
type Column struct {
	// Field is the struct field name, its json tag, or a map key.
	Field  string
	Header string
	// Width truncates longer cells. Zero means unlimited.
	Width int
	// Transform is one of upper, lower, title, trim or bytes.
	Transform string
}

// FormatConfig contains configuration options for formatting output.
type FormatConfig struct {
	// Columns overrides the auto-detected table columns.
	Columns []Column

	// Pretty enables indentation (for JSON)
	Pretty bool

	// Colors enables colored output
	Colors bool

	// ShowHeaders controls header display (for tables)
	ShowHeaders bool

	// SortBy specifies the header to sort by (for tables)
	SortBy string

	// SortAsc controls sort direction
	SortAsc bool
}

// NewFormatConfig creates a new FormatConfig with sensible defaults.
func NewFormatConfig() *FormatConfig {
	return &FormatConfig{
		Pretty:      true,
		Colors:      true,
		ShowHeaders: true,
		SortAsc:     true,
	}
}

// WithColumns sets the table columns.
func (c *FormatConfig) WithColumns(cols ...Column) *FormatConfig {
	c.Columns = cols
	return c
}

// WithPretty sets the pretty-printing option.
func (c *FormatConfig) WithPretty(pretty bool) *FormatConfig {
	c.Pretty = pretty
	return c
}

// WithColors sets the colors option.
func (c *FormatConfig) WithColors(colors bool) *FormatConfig {
	c.Colors = colors
	return c
}

// WithSorting sets the sorting options.
func (c *FormatConfig) WithSorting(field string, asc bool) *FormatConfig {
	c.SortBy = field
	c.SortAsc = asc
	return c
}

// clone returns a shallow copy so per-call options do not leak into the
// manager's defaults.
func (c *FormatConfig) clone() *FormatConfig {
	cp := *c
	return &cp
}
