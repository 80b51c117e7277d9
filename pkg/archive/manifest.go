package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ManifestName is the archive entry holding the manifest. It is always the
// first entry written.
const ManifestName = "backup_manifest.json"

// FormatVersion is the manifest format written by Create.
const FormatVersion = 1

// Reasons recorded in manifests.
const (
	ReasonManual     = "manual"
	ReasonPreRestore = "pre_restore"
)

// FileEntry records one archived file.
type FileEntry struct {
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size" yaml:"size"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// Manifest describes an archive.
type Manifest struct {
	Version     int         `json:"backup_version" yaml:"backup_version"`
	Date        string      `json:"backup_date" yaml:"backup_date"`
	AppVersion  string      `json:"vts_version" yaml:"vts_version"`
	InstallPath string      `json:"vts_install_path" yaml:"vts_install_path"`
	Options     Flags       `json:"options" yaml:"options"`
	Notes       string      `json:"user_notes" yaml:"user_notes"`
	Reason      string      `json:"backup_reason" yaml:"backup_reason"`
	Files       []FileEntry `json:"files,omitempty" yaml:"files,omitempty"`
}

// CreatedAt parses Date. The zero time is returned if it cannot be parsed.
func (m *Manifest) CreatedAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.ParseInLocation(layout, m.Date, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// checksums indexes the manifest's file list by path.
func (m *Manifest) checksums() map[string]FileEntry {
	out := make(map[string]FileEntry, len(m.Files))
	for _, f := range m.Files {
		out[f.Path] = f
	}
	return out
}

func findManifest(r *zip.Reader) *zip.File {
	for _, f := range r.File {
		if f.Name == ManifestName {
			return f
		}
	}
	return nil
}

func readManifest(f *zip.File) (*Manifest, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ReadManifest returns the manifest of the archive at path, or nil if the
// archive has no manifest entry.
func ReadManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	f := findManifest(&zr.Reader)
	if f == nil {
		return nil, nil
	}
	return readManifest(f)
}
