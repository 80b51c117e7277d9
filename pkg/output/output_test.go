package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type backupRow struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
	Note    string    `json:"-"`
	Log     []string  `json:"log" table:"-"`
}

func plain() *FormatConfig {
	return NewFormatConfig().WithColors(false)
}

func TestNewManager(t *testing.T) {
	m := NewManager()

	if m.defaultFormat != "table" {
		t.Errorf("Expected default format 'table', got '%s'", m.defaultFormat)
	}
	got := strings.Join(m.GetSupportedFormats(), ",")
	if got != "json,table,yaml" {
		t.Errorf("Unexpected formats: %s", got)
	}
	if !m.IsFormatSupported("JSON") {
		t.Error("Expected format lookup to ignore case")
	}
	if _, err := m.GetFormatter("xml"); err == nil {
		t.Error("Expected error for unknown formatter")
	}
}

func TestJSONFormatter(t *testing.T) {
	f := NewJSONFormatter()
	rows := []backupRow{{Name: "a.zip", Size: 10, Note: "hidden"}}

	var buf bytes.Buffer
	if err := f.Format(&buf, rows, plain()); err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded[0]["name"] != "a.zip" {
		t.Errorf("Unexpected name: %v", decoded[0]["name"])
	}
	if _, ok := decoded[0]["Note"]; ok {
		t.Error("Expected json:\"-\" field to be omitted")
	}
}

func TestJSONFormatterCompactRaw(t *testing.T) {
	f := NewJSONFormatter()
	var buf bytes.Buffer
	raw := json.RawMessage("{ \"a\" : [1, 2] }")
	if err := f.Format(&buf, raw, plain().WithPretty(false)); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\"a\":[1,2]}\n" {
		t.Errorf("Unexpected compact output: %q", buf.String())
	}

	if err := f.Format(&buf, []byte("{"), plain()); err == nil {
		t.Error("Expected error for invalid raw JSON")
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := NewYAMLFormatter()
	var buf bytes.Buffer
	if err := f.Format(&buf, json.RawMessage(`{"name":"Alice","hotkeys":2}`), nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "name: Alice") || !strings.Contains(out, "hotkeys: 2") {
		t.Errorf("Unexpected YAML:\n%s", out)
	}

	buf.Reset()
	if err := f.Format(&buf, nil, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "null\n" {
		t.Errorf("Expected null, got %q", buf.String())
	}
}

func TestTableFormatterSupports(t *testing.T) {
	f := NewTableFormatter()
	tests := []struct {
		name     string
		data     any
		expected bool
	}{
		{"nil", nil, false},
		{"string", "test", false},
		{"map", map[string]string{"key": "value"}, true},
		{"slice", []string{"a"}, true},
		{"empty slice", []string{}, false},
		{"struct", backupRow{}, true},
		{"nil pointer", (*backupRow)(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Supports(tt.data); got != tt.expected {
				t.Errorf("Supports(%v) = %v, want %v", tt.data, got, tt.expected)
			}
		})
	}
}

func TestTableFormatterSlice(t *testing.T) {
	f := NewTableFormatter()
	rows := []backupRow{
		{Name: "b.zip", Size: 2048},
		{Name: "a.zip", Size: 1000000},
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, rows, plain()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"NAME", "SIZE", "a.zip", "b.zip", "2048"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "NOTE") || strings.Contains(out, "LOG") {
		t.Error("Expected hidden fields to have no column")
	}
}

func TestTableFormatterColumnsAndSort(t *testing.T) {
	f := NewTableFormatter()
	rows := []backupRow{
		{Name: "b.zip", Size: 2048},
		{Name: "a.zip", Size: 1000000},
	}
	cfg := plain().
		WithColumns(Column{Field: "name", Header: "FILE"}, Column{Field: "Size", Header: "SIZE", Transform: "bytes"}).
		WithSorting("file", true)

	var buf bytes.Buffer
	if err := f.Format(&buf, rows, cfg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "1.0 MB") || !strings.Contains(out, "2.0 kB") {
		t.Errorf("Expected humanized sizes:\n%s", out)
	}
	if strings.Index(out, "a.zip") > strings.Index(out, "b.zip") {
		t.Errorf("Expected rows sorted by file:\n%s", out)
	}
}

func TestTableFormatterStructAndMap(t *testing.T) {
	f := NewTableFormatter()
	type summary struct {
		Source string `json:"source"`
		Count  int    `json:"count"`
	}
	type result struct {
		summary
		Target string `json:"target"`
		Err    error  `json:"-"`
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, &result{summary: summary{Source: "Alice", Count: 3}, Target: "Bob"}, plain()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"FIELD", "target", "Bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := f.Format(&buf, map[string]int{"z": 1, "a": 2}, plain()); err != nil {
		t.Fatal(err)
	}
	if strings.Index(buf.String(), "a") > strings.Index(buf.String(), "z") {
		t.Errorf("Expected sorted keys:\n%s", buf.String())
	}
}

func TestTransformValue(t *testing.T) {
	f := NewTableFormatter()
	tests := []struct {
		value     any
		transform string
		want      string
	}{
		{"hello world", "title", "Hello World"},
		{"Mixed", "upper", "MIXED"},
		{"Mixed", "lower", "mixed"},
		{"  x ", "trim", "x"},
		{int64(1500), "bytes", "1.5 kB"},
		{time.Time{}, "ago", ""},
		{[]string{"a", "b"}, "", "a, b"},
		{errors.New("boom"), "", "boom"},
	}
	for _, tt := range tests {
		if got := f.transformValue(tt.value, tt.transform); got != tt.want {
			t.Errorf("transformValue(%v, %q) = %q, want %q", tt.value, tt.transform, got, tt.want)
		}
	}
}

func TestManagerEmptyAndErrors(t *testing.T) {
	m := NewManager()
	m.SetConfig(plain())

	var buf bytes.Buffer
	if err := m.Format(&buf, []backupRow{}, "table"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No results found\n" {
		t.Errorf("Unexpected empty output: %q", buf.String())
	}

	buf.Reset()
	if err := m.Format(&buf, []backupRow{}, "json"); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Expected empty JSON array, got %q", buf.String())
	}

	buf.Reset()
	if err := m.FormatError(&buf, errors.New("not found"), "json"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"error": "not found"`) {
		t.Errorf("Unexpected error output: %s", buf.String())
	}

	buf.Reset()
	if err := m.FormatError(&buf, errors.New("not found"), ""); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Error: not found\n" {
		t.Errorf("Unexpected table error: %q", buf.String())
	}

	if err := m.Format(&buf, 42, "table"); err == nil {
		t.Error("Expected error for scalar in table format")
	}
}

func TestManagerColumnsDoesNotLeak(t *testing.T) {
	m := NewManager()
	m.SetConfig(plain())

	var buf bytes.Buffer
	if err := m.Columns(&buf, []backupRow{{Name: "a"}}, "table", Column{Field: "name"}); err != nil {
		t.Fatal(err)
	}
	if len(m.GetConfig().Columns) != 0 {
		t.Error("Expected manager config to be untouched")
	}
}
