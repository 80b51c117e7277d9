// Package backup manages the archives of an installation kept in a backup
// directory. It creates auto-named archives, restores them behind an
// automatic safety backup of the current tree, and lists or prunes the
// directory.
package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/archive"
	"github.com/CliForge/vtsconf/pkg/install"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

const (
	// FilePrefix starts the name of every archive the orchestrator writes.
	FilePrefix = "vts_backup_"
	// FileExt is the archive file extension.
	FileExt = ".zip"
)

// Orchestrator creates and restores archives of an installation.
type Orchestrator struct {
	Codec  *archive.Codec
	Dir    string
	Logger *slog.Logger
}

// New creates an orchestrator storing archives in dir.
func New(codec *archive.Codec, dir string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{Codec: codec, Dir: dir, Logger: logger}
}

// FileName returns the archive name for the current time.
func FileName() string {
	return FilePrefix + fsutil.Timestamp() + FileExt
}

// Create archives the categories of inst selected by flags into a new,
// auto-named archive in the backup directory and returns its path.
func (o *Orchestrator) Create(inst *install.Installation, flags archive.Flags, notes string) (string, error) {
	return o.create(inst, flags, notes, archive.ReasonManual)
}

func (o *Orchestrator) create(inst *install.Installation, flags archive.Flags, notes, reason string) (string, error) {
	if o.Dir == "" {
		return "", fmt.Errorf("no backup directory configured")
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return "", &vtube.IOError{Op: "create", Path: o.Dir, Err: err}
	}
	dest := o.nextPath()
	codec := *o.Codec
	codec.InstallPath = inst.Root
	path, err := codec.Create(inst.ConfigRoot, dest, flags, notes, reason)
	if err != nil {
		return "", err
	}
	o.Logger.Info("backup created", "path", path, "reason", reason)
	return path, nil
}

// nextPath returns an unused archive path. Archives created within the same
// second get a numeric suffix.
func (o *Orchestrator) nextPath() string {
	name := FileName()
	dest := filepath.Join(o.Dir, name)
	stem := strings.TrimSuffix(name, FileExt)
	for n := 2; fsutil.FileExists(dest); n++ {
		dest = filepath.Join(o.Dir, fmt.Sprintf("%s_%d%s", stem, n, FileExt))
	}
	return dest
}

// Restore extracts the categories of archivePath selected by flags into
// inst. Unless safetyBackup is false, the current tree is archived first
// with the default categories, plus backgrounds when the restore writes
// them, and the path is recorded in the report. Plugin authorization tokens
// are never part of a safety backup. A failed safety backup is a warning.
func (o *Orchestrator) Restore(archivePath string, inst *install.Installation, flags archive.Flags, safetyBackup bool) *archive.RestoreReport {
	rep := o.Codec.NewRestoreReport()
	if !fsutil.FileExists(archivePath) {
		rep.Errorf("Backup file not found: %s", archivePath)
		return rep
	}

	if safetyBackup {
		safety := archive.DefaultFlags()
		safety.Backgrounds = flags.Backgrounds
		notes := "Automatic backup before restoring " + filepath.Base(archivePath)
		path, err := o.create(inst, safety, notes, archive.ReasonPreRestore)
		if err != nil {
			rep.Warnf("Safety backup failed: %v", err)
		} else {
			rep.SafetyBackupPath = path
			rep.Logf("Safety backup created: %s", path)
		}
	} else {
		rep.Logf("Safety backup skipped")
	}

	o.Codec.RestoreInto(rep, archivePath, inst.ConfigRoot, flags)
	return rep
}

// Info describes one archive in the backup directory.
type Info struct {
	Path     string            `json:"path" yaml:"path"`
	Name     string            `json:"name" yaml:"name"`
	Size     int64             `json:"size" yaml:"size"`
	Created  time.Time         `json:"created" yaml:"created"`
	Manifest *archive.Manifest `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	// Err is set when the manifest could not be read.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// List returns the archives in the backup directory, newest first. The
// creation time is taken from the manifest, falling back to the file's
// modification time. A missing directory yields no archives.
func (o *Orchestrator) List() ([]Info, error) {
	entries, err := os.ReadDir(o.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &vtube.IOError{Op: "list", Path: o.Dir, Err: err}
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), FileExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := Info{
			Path:    filepath.Join(o.Dir, e.Name()),
			Name:    e.Name(),
			Size:    fi.Size(),
			Created: fi.ModTime(),
		}
		m, err := archive.ReadManifest(info.Path)
		switch {
		case err != nil:
			info.Err = err.Error()
		case m != nil:
			info.Manifest = m
			if t := m.CreatedAt(); !t.IsZero() {
				info.Created = t
			}
		}
		out = append(out, info)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].Name > out[j].Name
		}
		return out[i].Created.After(out[j].Created)
	})
	return out, nil
}

// Prune deletes all but the newest keep archives and returns the paths it
// removed. Files that are not archives are never touched.
func (o *Orchestrator) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative: %d", keep)
	}
	backups, err := o.List()
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, &vtube.IOError{Op: "remove", Path: b.Path, Err: err}
		}
		o.Logger.Info("backup pruned", "path", b.Path)
		removed = append(removed, b.Path)
	}
	return removed, nil
}
