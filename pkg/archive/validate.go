package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/install"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of Validate.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	if i.Severity == SeverityWarning {
		return "Warning: " + i.Message
	}
	return i.Message
}

// Validate checks that archivePath is a readable archive with a manifest
// and intact members. valid is false iff an error-severity issue was found.
// An archive without a global settings document is only warned about.
func (c *Codec) Validate(archivePath string) (valid bool, issues []Issue) {
	fail := func(format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
	}
	warn := func(format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
	}

	if !fsutil.FileExists(archivePath) {
		fail("Backup file does not exist")
		return false, issues
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		fail("File is not a valid ZIP archive")
		return false, issues
	}
	defer zr.Close()

	var sums map[string]FileEntry
	if mf := findManifest(&zr.Reader); mf == nil {
		fail("Missing backup manifest")
	} else if m, err := readManifest(mf); err != nil {
		fail("Failed to read backup manifest: %v", err)
	} else {
		sums = m.checksums()
		for path := range sums {
			if !hasEntry(&zr.Reader, path) {
				fail("Manifest lists missing file: %s", path)
			}
		}
	}

	hasSettings := false
	for _, f := range zr.File {
		if strings.Contains(f.Name, install.GlobalSettingsFile) {
			hasSettings = true
		}
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		sum, err := verifyMember(f)
		if err != nil {
			fail("Corrupt file in archive: %s", f.Name)
			continue
		}
		if want, ok := sums[f.Name]; ok && want.SHA256 != sum {
			fail("Checksum mismatch: %s", f.Name)
		}
	}
	if !hasSettings {
		warn("No %s found", install.GlobalSettingsFile)
	}

	for _, i := range issues {
		if i.Severity == SeverityError {
			c.logger().Warn("archive validation issue", "path", archivePath, "issue", i.Message)
			return false, issues
		}
	}
	return true, issues
}

func hasEntry(r *zip.Reader, name string) bool {
	for _, f := range r.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// verifyMember reads a member in full, which checks its CRC-32, and returns
// its SHA-256.
func verifyMember(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Entry is one member of an archive.
type Entry struct {
	Name     string    `json:"name" yaml:"name"`
	Size     uint64    `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
	Category Category  `json:"category,omitempty" yaml:"category,omitempty"`
}

// List returns the members of archivePath, excluding the manifest, and the
// manifest if present.
func List(archivePath string) ([]Entry, *Manifest, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	var manifest *Manifest
	if mf := findManifest(&zr.Reader); mf != nil {
		manifest, _ = readManifest(mf)
	}

	var entries []Entry
	for _, f := range zr.File {
		if f.Name == ManifestName || strings.HasSuffix(f.Name, "/") {
			continue
		}
		cat, _ := Classify(f.Name)
		entries = append(entries, Entry{
			Name:     f.Name,
			Size:     f.UncompressedSize64,
			Modified: f.Modified,
			Category: cat,
		})
	}
	return entries, manifest, nil
}
