// Package vtube models the per-entity configuration documents
// (*.vtube.json) of a VTube Studio installation.
//
// A Document decodes the fields this tool works with (name, identifier,
// hotkeys, parameter mappings, file references) and keeps the original JSON
// for everything else. Encoding patches only what changed into the stored
// JSON, so unrecognized keys are preserved on a load/save round trip.
//
// Validation distinguishes blocking errors (missing Version/Name/ModelID, a
// malformed ModelID, Hotkeys or ParameterSettings that are not arrays) from
// advisory warnings (per-hotkey problems, a non-object FileReferences). Save
// refuses documents with blocking errors.
package vtube

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DocumentSuffix is the fixed file name suffix of a configuration document.
const DocumentSuffix = ".vtube.json"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileName returns the on-disk file name for a document with the given
// display name.
func FileName(displayName string) string {
	return displayName + DocumentSuffix
}

// Document is one entity's configuration.
type Document struct {
	Version        int
	Name           string
	ModelID        string
	Hotkeys        []Hotkey
	Parameters     []ParameterMapping
	FileReferences map[string]string

	raw         []byte
	baseName    string
	baseModelID string
}

// NewDocument creates an empty document with a fresh identifier.
func NewDocument(name string) *Document {
	return &Document{
		Version:        1,
		Name:           name,
		ModelID:        GenerateID(),
		FileReferences: map[string]string{},
	}
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Kind: "file", Name: path}
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return doc, nil
}

// Parse decodes a document from its JSON text.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("document is not a JSON object")
	}

	doc := &Document{
		Version:        int(root.Get("Version").Int()),
		Name:           root.Get("Name").String(),
		ModelID:        root.Get("ModelID").String(),
		FileReferences: map[string]string{},
		raw:            bytes.TrimSpace(append([]byte(nil), data...)),
	}
	doc.baseName = doc.Name
	doc.baseModelID = doc.ModelID

	if hk := root.Get("Hotkeys"); hk.IsArray() {
		hk.ForEach(func(_, v gjson.Result) bool {
			doc.Hotkeys = append(doc.Hotkeys, decodeHotkey(json.RawMessage(v.Raw)))
			return true
		})
	}
	if ps := root.Get("ParameterSettings"); ps.IsArray() {
		ps.ForEach(func(_, v gjson.Result) bool {
			doc.Parameters = append(doc.Parameters, decodeParameter(json.RawMessage(v.Raw)))
			return true
		})
	}
	if fr := root.Get("FileReferences"); fr.IsObject() {
		fr.ForEach(func(k, v gjson.Result) bool {
			if v.Type == gjson.String {
				doc.FileReferences[k.String()] = v.String()
			}
			return true
		})
	}
	return doc, nil
}

// field returns the stored value for a top-level key.
func (d *Document) field(key string) gjson.Result {
	if d.raw == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(d.raw, key)
}

// HotkeyByID returns the hotkey with the given identifier.
func (d *Document) HotkeyByID(id string) (*Hotkey, bool) {
	for i := range d.Hotkeys {
		if d.Hotkeys[i].ID == id {
			return &d.Hotkeys[i], true
		}
	}
	return nil, false
}

// ParameterByName returns the first parameter mapping with the given name.
func (d *Document) ParameterByName(name string) (*ParameterMapping, bool) {
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i], true
		}
	}
	return nil, false
}

// Encode renders the document as two-space indented JSON.
func (d *Document) Encode() ([]byte, error) {
	out := []byte("{}")
	fresh := d.raw == nil
	if !fresh {
		out = append([]byte(nil), d.raw...)
	}

	var err error
	if fresh {
		if out, err = sjson.SetBytes(out, "Version", d.Version); err != nil {
			return nil, fmt.Errorf("failed to encode Version: %w", err)
		}
	}
	if fresh || d.Name != d.baseName {
		if out, err = sjson.SetBytes(out, "Name", d.Name); err != nil {
			return nil, fmt.Errorf("failed to encode Name: %w", err)
		}
	}
	if fresh || d.ModelID != d.baseModelID {
		if out, err = sjson.SetBytes(out, "ModelID", d.ModelID); err != nil {
			return nil, fmt.Errorf("failed to encode ModelID: %w", err)
		}
	}

	if len(d.Hotkeys) > 0 || d.field("Hotkeys").IsArray() || fresh {
		arr, err := encodeArray(d.Hotkeys)
		if err != nil {
			return nil, err
		}
		if out, err = sjson.SetRawBytes(out, "Hotkeys", arr); err != nil {
			return nil, fmt.Errorf("failed to encode Hotkeys: %w", err)
		}
	}
	if len(d.Parameters) > 0 || d.field("ParameterSettings").IsArray() || fresh {
		arr, err := encodeArray(d.Parameters)
		if err != nil {
			return nil, err
		}
		if out, err = sjson.SetRawBytes(out, "ParameterSettings", arr); err != nil {
			return nil, fmt.Errorf("failed to encode ParameterSettings: %w", err)
		}
	}
	if fresh {
		if out, err = sjson.SetBytes(out, "FileReferences", d.FileReferences); err != nil {
			return nil, fmt.Errorf("failed to encode FileReferences: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, out, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeArray[T json.Marshaler](items []T) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := item.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Save validates doc and writes it to path. A document that fails blocking
// validation is not written and a *ValidationError is returned.
func Save(path string, doc *Document) error {
	result := Validate(doc)
	if !result.Valid {
		return &ValidationError{Path: path, Failures: result.Errors}
	}

	data, err := doc.Encode()
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}

	// Later saves patch against what is now on disk.
	doc.raw = data
	doc.baseName = doc.Name
	doc.baseModelID = doc.ModelID
	return nil
}

// IsBackupName reports whether a document file name marks a backup or
// duplicate copy rather than the authoritative document.
func IsBackupName(name string) bool {
	return strings.Contains(name, ".original") ||
		strings.Contains(name, ".backup") ||
		strings.Contains(name, " - Kopie")
}
