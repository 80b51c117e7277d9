package output

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
)

// TableFormatter formats output as a table using pterm.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Supports returns true if the formatter can handle the given data type.
// Table formatter supports non-empty slices and maps, and structs.
func (f *TableFormatter) Supports(data any) bool {
	if data == nil {
		return false
	}

	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() > 0
	case reflect.Struct:
		return true
	case reflect.Ptr:
		if v.IsNil() {
			return false
		}
		return f.Supports(v.Elem().Interface())
	}
	return false
}

// Format formats the data as a table and writes it to the writer.
func (f *TableFormatter) Format(w io.Writer, data any, config *FormatConfig) error {
	if config == nil {
		config = NewFormatConfig()
	}
	if data == nil {
		return fmt.Errorf("cannot format nil data as table")
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("cannot format nil pointer as table")
		}
		v = v.Elem()
	}

	var tableData [][]string
	var err error

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		tableData, err = f.formatSlice(v, config)
	case reflect.Map:
		tableData, err = f.formatMap(v, config)
	case reflect.Struct:
		tableData = f.formatStruct(v, config)
	default:
		return fmt.Errorf("unsupported data type for table formatting: %s", v.Kind())
	}
	if err != nil {
		return err
	}

	if config.SortBy != "" && len(tableData) > 1 {
		tableData = f.sortTableData(tableData, config)
	}

	table := pterm.DefaultTable.WithHasHeader(config.ShowHeaders)
	if config.Colors {
		table = table.WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan, pterm.Bold))
	} else {
		pterm.DisableColor()
		defer pterm.EnableColor()
	}

	rendered, err := table.WithData(tableData).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = io.WriteString(w, rendered+"\n")
	return err
}

// formatSlice formats a slice or array as a table, one row per element.
func (f *TableFormatter) formatSlice(v reflect.Value, config *FormatConfig) ([][]string, error) {
	if v.Len() == 0 {
		return nil, fmt.Errorf("empty slice")
	}

	columns := config.Columns
	if len(columns) == 0 {
		columns = f.autoDetectColumns(v.Index(0))
	}
	if len(columns) == 0 {
		// Scalars: one column of values.
		tableData := make([][]string, 0, v.Len()+1)
		if config.ShowHeaders {
			tableData = append(tableData, []string{"VALUE"})
		}
		for i := range v.Len() {
			tableData = append(tableData, []string{f.formatValue(v.Index(i).Interface())})
		}
		return tableData, nil
	}

	tableData := make([][]string, 0, v.Len()+1)
	if config.ShowHeaders {
		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = col.Header
			if headers[i] == "" {
				headers[i] = strings.ToUpper(col.Field)
			}
		}
		tableData = append(tableData, headers)
	}

	for i := range v.Len() {
		row := make([]string, len(columns))
		elem := v.Index(i)
		for j, col := range columns {
			row[j] = f.transformValue(f.extractField(elem, col.Field), col.Transform)
			if col.Width > 3 && len(row[j]) > col.Width {
				row[j] = row[j][:col.Width-3] + "..."
			}
		}
		tableData = append(tableData, row)
	}
	return tableData, nil
}

// formatMap formats a map as a two-column key-value table.
func (f *TableFormatter) formatMap(v reflect.Value, config *FormatConfig) ([][]string, error) {
	if v.Len() == 0 {
		return nil, fmt.Errorf("empty map")
	}

	tableData := make([][]string, 0, v.Len()+1)
	if config.ShowHeaders {
		tableData = append(tableData, []string{"KEY", "VALUE"})
	}

	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	for _, key := range keys {
		tableData = append(tableData, []string{
			fmt.Sprint(key.Interface()),
			f.formatValue(v.MapIndex(key).Interface()),
		})
	}
	return tableData, nil
}

// formatStruct formats a struct as a two-column key-value table. Embedded
// structs contribute their fields inline.
func (f *TableFormatter) formatStruct(v reflect.Value, config *FormatConfig) [][]string {
	var tableData [][]string
	if config.ShowHeaders {
		tableData = append(tableData, []string{"FIELD", "VALUE"})
	}
	f.appendStructRows(&tableData, v)
	return tableData
}

func (f *TableFormatter) appendStructRows(rows *[][]string, v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			f.appendStructRows(rows, v.Field(i))
			continue
		}
		name, skip := fieldName(field)
		if skip {
			continue
		}
		*rows = append(*rows, []string{name, f.formatValue(v.Field(i).Interface())})
	}
}

// fieldName returns the json name of a struct field, or its Go name. Fields
// tagged table:"-" are left out of tables.
func fieldName(field reflect.StructField) (string, bool) {
	if field.Tag.Get("table") == "-" {
		return "", true
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return field.Name, false
}

// autoDetectColumns derives columns from a struct or map element.
func (f *TableFormatter) autoDetectColumns(v reflect.Value) []Column {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	var columns []Column
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			field := t.Field(i)
			if !field.IsExported() || field.Anonymous {
				continue
			}
			name, skip := fieldName(field)
			if skip {
				continue
			}
			columns = append(columns, Column{Field: name, Header: strings.ToUpper(name)})
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, key := range keys {
			keyStr := fmt.Sprint(key.Interface())
			columns = append(columns, Column{Field: keyStr, Header: strings.ToUpper(keyStr)})
		}
	}
	return columns
}

// extractField extracts a field value by Go name, json tag or map key.
func (f *TableFormatter) extractField(v reflect.Value, field string) any {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if fmt.Sprint(key.Interface()) == field {
				return v.MapIndex(key).Interface()
			}
		}
	case reflect.Struct:
		if fv := v.FieldByName(field); fv.IsValid() && fv.CanInterface() {
			return fv.Interface()
		}
		t := v.Type()
		for i := range t.NumField() {
			if name, skip := fieldName(t.Field(i)); !skip && name == field && t.Field(i).IsExported() {
				return v.Field(i).Interface()
			}
		}
	}
	return nil
}

// transformValue applies a column transformation to a value.
func (f *TableFormatter) transformValue(value any, transform string) string {
	switch strings.ToLower(transform) {
	case "bytes":
		switch n := value.(type) {
		case int64:
			return humanize.Bytes(uint64(max(n, 0)))
		case int:
			return humanize.Bytes(uint64(max(n, 0)))
		}
	case "ago":
		if t, ok := value.(time.Time); ok && !t.IsZero() {
			return humanize.Time(t)
		}
	}

	str := f.formatValue(value)
	switch strings.ToLower(transform) {
	case "uppercase", "upper":
		return strings.ToUpper(str)
	case "lowercase", "lower":
		return strings.ToLower(str)
	case "title":
		words := strings.Fields(str)
		for i, word := range words {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
		return strings.Join(words, " ")
	case "trim":
		return strings.TrimSpace(str)
	}
	return str
}

// formatValue formats a value as a string.
func (f *TableFormatter) formatValue(value any) string {
	if value == nil {
		return ""
	}

	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		value = v.Elem().Interface()
	}

	switch val := value.(type) {
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02 15:04:05")
	case []string:
		return strings.Join(val, ", ")
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprintf("%v", value)
}

// sortTableData sorts table rows by the column whose header matches SortBy.
func (f *TableFormatter) sortTableData(data [][]string, config *FormatConfig) [][]string {
	if !config.ShowHeaders || len(data) <= 1 {
		return data
	}

	colIndex := -1
	for i, header := range data[0] {
		if strings.EqualFold(header, config.SortBy) {
			colIndex = i
			break
		}
	}
	if colIndex == -1 {
		return data
	}

	rows := data[1:]
	sort.SliceStable(rows, func(i, j int) bool {
		if config.SortAsc {
			return rows[i][colIndex] < rows[j][colIndex]
		}
		return rows[i][colIndex] > rows[j][colIndex]
	})
	return data
}

// FormatError formats an error as a one-line message.
func (f *TableFormatter) FormatError(w io.Writer, err error, _ *FormatConfig) error {
	_, werr := fmt.Fprintf(w, "Error: %s\n", err)
	return werr
}

// FormatEmpty formats an empty result message.
func (f *TableFormatter) FormatEmpty(w io.Writer, message string, _ *FormatConfig) error {
	if message == "" {
		message = "No results found"
	}
	_, err := io.WriteString(w, message+"\n")
	return err
}
