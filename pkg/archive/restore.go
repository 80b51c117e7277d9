package archive

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/report"
)

// RestoreReport is the outcome of a restore.
type RestoreReport struct {
	report.Report `yaml:",inline"`

	FilesRestored int       `json:"files_restored" yaml:"files_restored"`
	FilesSkipped  int       `json:"files_skipped" yaml:"files_skipped"`
	Manifest      *Manifest `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	// SafetyBackupPath is the archive of the tree taken before the restore
	// began, if any.
	SafetyBackupPath string `json:"safety_backup_path,omitempty" yaml:"safety_backup_path,omitempty"`
}

// NewRestoreReport returns an empty, successful report.
func (c *Codec) NewRestoreReport() *RestoreReport {
	return &RestoreReport{Report: *report.New(c.logger())}
}

// Restore extracts the entries of archivePath selected by flags into
// treeRoot. Problems with individual entries are recorded in the report and
// do not stop the remaining entries. A missing manifest is a warning.
func (c *Codec) Restore(archivePath, treeRoot string, flags Flags) *RestoreReport {
	rep := c.NewRestoreReport()
	c.RestoreInto(rep, archivePath, treeRoot, flags)
	return rep
}

// RestoreInto is Restore recording into an existing report.
func (c *Codec) RestoreInto(rep *RestoreReport, archivePath, treeRoot string, flags Flags) {
	if !fsutil.FileExists(archivePath) {
		rep.Errorf("Backup file not found: %s", archivePath)
		return
	}
	if err := os.MkdirAll(treeRoot, 0o755); err != nil {
		rep.Errorf("Failed to create restore target %s: %v", treeRoot, err)
		return
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		rep.Errorf("Failed to open archive: %v", err)
		return
	}
	defer zr.Close()

	rep.Logf("Restoring from: %s", filepath.Base(archivePath))

	var sums map[string]FileEntry
	if mf := findManifest(&zr.Reader); mf == nil {
		rep.AddWarning("Backup manifest missing; entries are restored by path only")
	} else if m, err := readManifest(mf); err != nil {
		rep.Warnf("Backup manifest unreadable: %v", err)
	} else {
		rep.Manifest = m
		sums = m.checksums()
		rep.Logf("Backup date: %s", m.Date)
	}

	total := len(zr.File)
	for i, f := range zr.File {
		c.progress(i+1, total, f.Name)
		if f.Name == ManifestName || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if _, ok := flags.Select(f.Name); !ok {
			rep.FilesSkipped++
			continue
		}
		if err := extract(f, treeRoot, sums); err != nil {
			rep.Errorf("Failed to restore %s: %v", f.Name, err)
			continue
		}
		rep.FilesRestored++
		rep.Logf("Restored: %s", f.Name)
	}

	rep.Logf("Restore complete: %d files restored, %d skipped", rep.FilesRestored, rep.FilesSkipped)
}

// extract writes one member below root, verifying it against sums when the
// manifest lists it. The target is only replaced once the member has been
// read in full and verified.
func extract(f *zip.File, root string, sums map[string]FileEntry) error {
	if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
		return fmt.Errorf("entry path escapes the target folder")
	}
	target, err := securejoin.SecureJoin(root, filepath.FromSlash(f.Name))
	if err != nil {
		return fmt.Errorf("failed to resolve target path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmpPath := target + ".restore.tmp"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	h := sha256.New()
	_, err = io.Copy(out, io.TeeReader(rc, h))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if want, ok := sums[f.Name]; ok {
		if got := hex.EncodeToString(h.Sum(nil)); got != want.SHA256 {
			os.Remove(tmpPath)
			return fmt.Errorf("checksum mismatch")
		}
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
