// Package fsutil holds the file copy and backup-naming helpers shared by the
// engine packages.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the layout used in backup file and archive names.
const TimestampLayout = "20060102_150405"

// Now is the clock used for backup names. Tests may replace it.
var Now = time.Now

// Timestamp returns the current time formatted with TimestampLayout.
func Timestamp() string {
	return Now().Format(TimestampLayout)
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path names an existing directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CopyFile copies src to dst, creating parent directories of dst and keeping
// the source's permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode()&0o777|0o600)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	return out.Close()
}

// CopyDir recursively copies src into dst. Symlinks and non-regular files are
// not followed. Files for which skip returns true are left out; skip may be nil.
func CopyDir(src, dst string, skip func(name string) bool) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if skip != nil && skip(d.Name()) {
			return nil
		}
		return CopyFile(path, target)
	})
}

// BackupName returns the timestamped backup file name for a file:
// "Alice.vtube.json" becomes "Alice.vtube.backup_20240101_120000.json".
func BackupName(fileName string) string {
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	if ext == "" {
		ext = ".json"
	}
	return fmt.Sprintf("%s.backup_%s%s", stem, Timestamp(), ext)
}

// BackupFile copies path into dir under its BackupName and returns the
// backup's path. An empty dir places the backup next to the original.
// An existing backup is never overwritten: backups taken within the same
// second get a numeric suffix ("..._140507_2.json").
func BackupFile(path, dir string) (string, error) {
	if dir == "" {
		dir = filepath.Dir(path)
	}
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := BackupName(filepath.Base(path))
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	dst := filepath.Join(dir, name)
	for n := 2; ; n++ {
		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode()&0o777|0o600)
		if errors.Is(err, fs.ErrExist) {
			dst = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", path, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			os.Remove(dst)
			return "", fmt.Errorf("failed to back up %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			os.Remove(dst)
			return "", fmt.Errorf("failed to back up %s: %w", path, err)
		}
		return dst, nil
	}
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// InvalidNameChars are the characters not allowed in entity and profile
// names, which become file and folder names.
const InvalidNameChars = `<>:"/\|?*`

// CheckName reports why name cannot be used as a file or folder name, or
// returns nil.
func CheckName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("name must not be empty")
	case strings.ContainsAny(name, InvalidNameChars):
		return fmt.Errorf("name contains invalid characters (%s)", strings.Join(strings.Split(InvalidNameChars, ""), " "))
	case name == "." || name == "..":
		return fmt.Errorf("name must not be %q", name)
	}
	return nil
}
