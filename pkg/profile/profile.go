// Package profile saves, compares and applies snapshots of an installation's
// global settings document.
//
// A profile is a JSON file in the profiles directory named after the
// profile. Its settings hold the typed StringData, IntData, FloatData and
// BoolData arrays of the global settings document, optionally narrowed to
// one category of keys.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/report"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

// FormatVersion is the profile_version written to new profiles.
const FormatVersion = 1

const fileExt = ".json"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Profile is a saved settings snapshot.
type Profile struct {
	Version     int             `json:"profile_version" yaml:"profile_version"`
	Name        string          `json:"name" yaml:"name"`
	CreatedDate string          `json:"created_date" yaml:"created_date"`
	AppVersion  string          `json:"vts_version" yaml:"vts_version"`
	Category    Category        `json:"category" yaml:"category"`
	Description string          `json:"description" yaml:"description"`
	Tags        []string        `json:"tags" yaml:"tags"`
	Settings    json.RawMessage `json:"settings" yaml:"-"`
}

// CreatedAt parses CreatedDate. The zero time is returned if it cannot be
// parsed.
func (p *Profile) CreatedAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.ParseInLocation(layout, p.CreatedDate, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Info summarizes a profile for listings.
type Info struct {
	Name        string    `json:"name" yaml:"name"`
	Path        string    `json:"path" yaml:"path"`
	Category    Category  `json:"category" yaml:"category"`
	Created     time.Time `json:"created" yaml:"created"`
	AppVersion  string    `json:"vts_version" yaml:"vts_version"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Entries     int       `json:"entries" yaml:"entries"`
}

// Manager stores profiles in a directory.
type Manager struct {
	Dir string
	// AppVersion is recorded in new profiles.
	AppVersion string
	// BackupDir receives the backup taken before Apply. Empty places it next
	// to the settings document.
	BackupDir string
	Logger    *slog.Logger
}

// NewManager creates a manager for the profiles in dir.
func NewManager(dir, appVersion string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{Dir: dir, AppVersion: appVersion, Logger: logger}
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.Dir, name+fileExt)
}

func checkName(name string) error {
	if err := fsutil.CheckName(name); err != nil {
		return &vtube.ValidationError{Failures: []string{"profile " + err.Error()}}
	}
	return nil
}

// Save stores settings, narrowed to category, as profile name. An existing
// profile of that name is replaced.
func (m *Manager) Save(name string, settings []byte, category Category, description string, tags []string) (*Profile, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if category == "" {
		category = CategoryComplete
	}
	filtered, err := FilterByCategory(bytes.TrimPrefix(settings, utf8BOM), category)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}

	p := &Profile{
		Version:     FormatVersion,
		Name:        name,
		CreatedDate: fsutil.Now().Format(time.RFC3339),
		AppVersion:  m.AppVersion,
		Category:    category,
		Description: description,
		Tags:        tags,
		Settings:    filtered,
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := fsutil.WriteFileAtomic(m.path(name), data, 0o644); err != nil {
		return nil, &vtube.IOError{Op: "write", Path: m.path(name), Err: err}
	}
	m.Logger.Info("profile saved", "name", name, "category", category, "entries", Count(filtered))
	return p, nil
}

// SaveFromInstallation saves the global settings document at settingsPath
// as profile name.
func (m *Manager) SaveFromInstallation(name, settingsPath string, category Category, description string, tags []string) (*Profile, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &vtube.NotFoundError{Kind: "settings file", Name: settingsPath}
		}
		return nil, &vtube.IOError{Op: "read", Path: settingsPath, Err: err}
	}
	return m.Save(name, data, category, description, tags)
}

// Load reads profile name.
func (m *Manager) Load(name string) (*Profile, error) {
	p, err := readProfile(m.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &vtube.NotFoundError{Kind: "profile", Name: name}
		}
		return nil, err
	}
	return p, nil
}

func readProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !isObject(data) {
		return nil, &vtube.ParseError{Path: path, Err: fmt.Errorf("not a JSON object")}
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &vtube.ParseError{Path: path, Err: err}
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), fileExt)
	}
	if p.Category == "" {
		p.Category = CategoryComplete
	}
	if len(p.Settings) == 0 {
		p.Settings = json.RawMessage(`{}`)
	}
	return &p, nil
}

// List returns every readable profile, newest first. Unreadable files are
// skipped with a logged warning. A missing directory yields no profiles.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &vtube.IOError{Op: "list", Path: m.Dir, Err: err}
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		path := filepath.Join(m.Dir, e.Name())
		p, err := readProfile(path)
		if err != nil {
			m.Logger.Warn("skipping unreadable profile", "file", e.Name(), "error", err)
			continue
		}
		created := p.CreatedAt()
		if created.IsZero() {
			if fi, err := e.Info(); err == nil {
				created = fi.ModTime()
			}
		}
		out = append(out, Info{
			Name:        p.Name,
			Path:        path,
			Category:    p.Category,
			Created:     created,
			AppVersion:  p.AppVersion,
			Description: p.Description,
			Tags:        p.Tags,
			Entries:     Count(p.Settings),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// Delete removes profile name.
func (m *Manager) Delete(name string) error {
	path := m.path(name)
	if !fsutil.FileExists(path) {
		return &vtube.NotFoundError{Kind: "profile", Name: name}
	}
	if err := os.Remove(path); err != nil {
		return &vtube.IOError{Op: "remove", Path: path, Err: err}
	}
	m.Logger.Info("profile deleted", "name", name)
	return nil
}

// Export copies profile name to dest.
func (m *Manager) Export(name, dest string) error {
	path := m.path(name)
	if !fsutil.FileExists(path) {
		return &vtube.NotFoundError{Kind: "profile", Name: name}
	}
	if err := fsutil.CopyFile(path, dest); err != nil {
		return &vtube.IOError{Op: "export", Path: dest, Err: err}
	}
	m.Logger.Info("profile exported", "name", name, "path", dest)
	return nil
}

// Import copies the profile file at src into the profiles directory and
// returns its name, taken from the document or else the file name. An
// existing profile of that name is only replaced when overwrite is set.
func (m *Manager) Import(src string, overwrite bool) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &vtube.NotFoundError{Kind: "import file", Name: src}
		}
		return "", &vtube.IOError{Op: "read", Path: src, Err: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !isObject(data) {
		return "", &vtube.ParseError{Path: src, Err: fmt.Errorf("not a JSON object")}
	}

	name := gjson.GetBytes(data, "name").String()
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	if err := checkName(name); err != nil {
		return "", err
	}

	dest := m.path(name)
	if fsutil.FileExists(dest) && !overwrite {
		return "", &vtube.ConflictError{Path: dest, Reason: "profile already exists"}
	}
	if err := fsutil.WriteFileAtomic(dest, data, 0o644); err != nil {
		return "", &vtube.IOError{Op: "write", Path: dest, Err: err}
	}
	m.Logger.Info("profile imported", "name", name, "from", src)
	return name, nil
}

// Compare loads two profiles and compares their settings.
func (m *Manager) Compare(first, second string) (*Comparison, error) {
	a, err := m.Load(first)
	if err != nil {
		return nil, err
	}
	b, err := m.Load(second)
	if err != nil {
		return nil, err
	}
	return CompareSettings(a.Settings, b.Settings), nil
}

// ApplyResult is the outcome of applying a profile.
type ApplyResult struct {
	report.Report `yaml:",inline"`
	MergeStats    `yaml:",inline"`

	Profile    string `json:"profile" yaml:"profile"`
	TargetPath string `json:"target" yaml:"target"`
	BackupPath string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	CanUndo    bool   `json:"can_undo" yaml:"can_undo"`
}

// Apply merges the settings of profile name into the global settings
// document at settingsPath. The document is backed up first and restored
// from the backup if it cannot be written.
func (m *Manager) Apply(name, settingsPath string) *ApplyResult {
	res := &ApplyResult{Report: *report.New(m.Logger), Profile: name, TargetPath: settingsPath}

	p, err := m.Load(name)
	if err != nil {
		res.Fail(err)
		return res
	}
	current, err := os.ReadFile(settingsPath)
	if err != nil {
		res.Errorf("Failed to read settings: %v", err)
		return res
	}
	current = bytes.TrimPrefix(current, utf8BOM)

	merged, stats, err := MergeSettings(current, p.Settings)
	if err != nil {
		res.Fail(err)
		return res
	}
	res.MergeStats = stats

	if m.BackupDir != "" {
		if err := os.MkdirAll(m.BackupDir, 0o755); err != nil {
			res.Errorf("Failed to create backup directory: %v", err)
			return res
		}
	}
	backup, err := fsutil.BackupFile(settingsPath, m.BackupDir)
	if err != nil {
		res.Errorf("Failed to create backup: %v", err)
		return res
	}
	res.BackupPath = backup
	res.CanUndo = true
	res.Logf("Backup created: %s", backup)

	if err := os.WriteFile(settingsPath, merged, 0o644); err != nil {
		res.Errorf("Failed to write settings: %v", err)
		if rerr := fsutil.CopyFile(backup, settingsPath); rerr != nil {
			res.Errorf("Rollback failed: %v (backup kept at %s)", rerr, backup)
		} else {
			res.Logf("Rollback successful")
		}
		return res
	}

	res.Logf("Applied profile %q: %d updated, %d added, %d unchanged", name, stats.Updated, stats.Added, stats.Unchanged)
	return res
}
