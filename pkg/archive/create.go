// Package archive reads and writes portable backup archives of an
// installation's configuration tree.
//
// An archive is a zip container whose first entry is backup_manifest.json.
// The remaining entries are stored under paths relative to the
// installation's StreamingAssets folder, for example
// "Config/vts_config.json" or "Live2DModels/Alice/Alice.vtube.json".
//
// Which files go in is decided per category by Flags. Restore applies the
// same category rules to every entry name, gated by the caller's Flags, so
// an archive can be restored partially.
package archive

import (
	"archive/zip"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/install"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

// ProgressFunc is called after each archive member is processed.
type ProgressFunc func(done, total int, name string)

// Codec creates, restores and inspects archives.
type Codec struct {
	// AppVersion is recorded in manifests as the application version.
	AppVersion string
	// Logger receives a line per archived or restored file. Nil discards.
	Logger *slog.Logger
	// Progress, if set, is notified as members are processed.
	Progress ProgressFunc
	// InstallPath is the installation root recorded in new manifests.
	// Empty records the archived tree root.
	InstallPath string
}

// NewCodec creates a codec that records appVersion in new manifests.
func NewCodec(appVersion string, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Codec{AppVersion: appVersion, Logger: logger}
}

func (c *Codec) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Codec) progress(done, total int, name string) {
	if c.Progress != nil {
		c.Progress(done, total, name)
	}
}

// member is a file staged for archiving.
type member struct {
	rel  string // slash-separated, relative to the tree root
	path string
}

// Create writes an archive of treeRoot (a StreamingAssets folder) to dest
// containing the categories enabled in flags. The archive is written to a
// temporary file next to dest and renamed into place. The path written is
// returned.
func (c *Codec) Create(treeRoot, dest string, flags Flags, notes, reason string) (string, error) {
	if !fsutil.DirExists(treeRoot) {
		return "", &vtube.NotFoundError{Kind: "folder", Name: treeRoot}
	}
	if reason == "" {
		reason = ReasonManual
	}

	members, err := collect(treeRoot, flags)
	if err != nil {
		return "", err
	}

	manifest := &Manifest{
		Version:     FormatVersion,
		Date:        fsutil.Now().Format(time.RFC3339),
		AppVersion:  c.AppVersion,
		InstallPath: cmp.Or(c.InstallPath, treeRoot),
		Options:     flags,
		Notes:       notes,
		Reason:      reason,
	}
	for _, m := range members {
		size, sum, err := checksumFile(m.path)
		if err != nil {
			return "", &vtube.IOError{Op: "read", Path: m.path, Err: err}
		}
		manifest.Files = append(manifest.Files, FileEntry{Path: m.rel, Size: size, SHA256: sum})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &vtube.IOError{Op: "create", Path: filepath.Dir(dest), Err: err}
	}
	tmpPath := dest + ".tmp"
	if err := c.write(tmpPath, manifest, members); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", &vtube.IOError{Op: "rename", Path: dest, Err: err}
	}

	c.logger().Info("archive created", "path", dest, "files", len(members))
	return dest, nil
}

func (c *Codec) write(path string, manifest *Manifest, members []member) error {
	f, err := os.Create(path)
	if err != nil {
		return &vtube.IOError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		return &vtube.IOError{Op: "write", Path: ManifestName, Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return &vtube.IOError{Op: "write", Path: ManifestName, Err: err}
	}

	for i, m := range members {
		if err := addFile(zw, m, manifest.Files[i].SHA256); err != nil {
			return err
		}
		c.logger().Debug("archived file", "path", m.rel)
		c.progress(i+1, len(members), m.rel)
	}

	if err := zw.Close(); err != nil {
		return &vtube.IOError{Op: "write", Path: path, Err: err}
	}
	return f.Close()
}

func addFile(zw *zip.Writer, m member, wantSum string) error {
	src, err := os.Open(m.path)
	if err != nil {
		return &vtube.IOError{Op: "read", Path: m.path, Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return &vtube.IOError{Op: "stat", Path: m.path, Err: err}
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return &vtube.IOError{Op: "archive", Path: m.path, Err: err}
	}
	header.Name = m.rel
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return &vtube.IOError{Op: "archive", Path: m.rel, Err: err}
	}
	h := sha256.New()
	if _, err := io.Copy(w, io.TeeReader(src, h)); err != nil {
		return &vtube.IOError{Op: "archive", Path: m.rel, Err: err}
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != wantSum {
		return &vtube.IOError{Op: "archive", Path: m.rel, Err: fmt.Errorf("file changed while archiving")}
	}
	return nil
}

func checksumFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// collect lists the files of treeRoot that flags selects, in category order.
func collect(treeRoot string, flags Flags) ([]member, error) {
	var members []member
	add := func(rel string) {
		p := filepath.Join(treeRoot, filepath.FromSlash(rel))
		if fsutil.FileExists(p) {
			members = append(members, member{rel: rel, path: p})
		}
	}
	configDir := install.ConfigDirName + "/"

	if flags.GlobalConfig {
		add(configDir + install.GlobalSettingsFile)
	}
	if flags.CustomParameters {
		add(configDir + install.CustomParametersFile)
	}
	if flags.Calibration {
		entries, _ := os.ReadDir(filepath.Join(treeRoot, install.ConfigDirName))
		for _, e := range entries {
			lower := strings.ToLower(e.Name())
			if !e.IsDir() && strings.HasSuffix(lower, ".json") &&
				(strings.Contains(lower, "calibration") || strings.Contains(lower, "lipsync")) {
				add(configDir + e.Name())
			}
		}
	}
	if flags.VisualEffects {
		add(install.EffectsDirName + "/" + install.EffectsFile)
	}
	if flags.ModelConfigs {
		docs, err := entityDocuments(treeRoot, install.ModelsDirName)
		if err != nil {
			return nil, err
		}
		members = append(members, docs...)
	}
	if flags.ItemConfigs {
		docs, err := entityDocuments(treeRoot, install.ItemsDirName)
		if err != nil {
			return nil, err
		}
		members = append(members, docs...)
	}
	if flags.PluginAuth {
		matches, _ := filepath.Glob(filepath.Join(treeRoot, install.ConfigDirName, install.PluginsDirName, "*"+install.PluginAuthExt))
		sort.Strings(matches)
		for _, m := range matches {
			add(configDir + install.PluginsDirName + "/" + filepath.Base(m))
		}
	}
	if flags.Backgrounds {
		dir := filepath.Join(treeRoot, install.BackgroundsDirName)
		if fsutil.DirExists(dir) {
			err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.Type().IsRegular() {
					rel, err := filepath.Rel(treeRoot, p)
					if err != nil {
						return err
					}
					members = append(members, member{rel: filepath.ToSlash(rel), path: p})
				}
				return nil
			})
			if err != nil {
				return nil, &vtube.IOError{Op: "scan", Path: dir, Err: err}
			}
		}
	}
	return members, nil
}

// entityDocuments lists every non-backup document in the entity folders
// under treeRoot/sub.
func entityDocuments(treeRoot, sub string) ([]member, error) {
	dir := filepath.Join(treeRoot, sub)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &vtube.IOError{Op: "scan", Path: dir, Err: err}
	}

	var members []member
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(dir, e.Name(), "*"+vtube.DocumentSuffix))
		sort.Strings(matches)
		for _, m := range matches {
			name := filepath.Base(m)
			if vtube.IsBackupName(name) {
				continue
			}
			members = append(members, member{rel: sub + "/" + e.Name() + "/" + name, path: m})
		}
	}
	return members, nil
}
