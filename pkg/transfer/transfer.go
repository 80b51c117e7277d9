// Package transfer copies a selection of hotkeys, parameter mappings and
// their media files from one configuration document to another.
//
// A transfer runs five phases in order, each of which may abort the rest:
//
//  1. Validate: both documents load and pass blocking validation.
//  2. Backup: the target document is copied to a timestamped backup.
//  3. Load: working copies of both documents are read.
//  4. Apply: selected entries are appended to the target, media copied.
//  5. Save: the target is written; a failed write restores the backup.
//
// Dry runs skip the backup and save phases and copy no files. Every outcome,
// including aborts, is returned as a *Result rather than an error.
package transfer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/report"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

// Settings is the caller's selection and options for one transfer.
type Settings struct {
	AllHotkeys     bool     `json:"all_hotkeys" yaml:"all_hotkeys"`
	AllParameters  bool     `json:"all_parameters" yaml:"all_parameters"`
	HotkeyIDs      []string `json:"hotkey_ids,omitempty" yaml:"hotkey_ids,omitempty"`
	ParameterNames []string `json:"parameter_names,omitempty" yaml:"parameter_names,omitempty"`
	// HotkeyFilter selects additional hotkeys by expression.
	HotkeyFilter string `json:"hotkey_filter,omitempty" yaml:"hotkey_filter,omitempty"`

	GenerateNewIDs bool `json:"generate_new_ids" yaml:"generate_new_ids"`
	CopyMediaFiles bool `json:"copy_media_files" yaml:"copy_media_files"`
	DryRun         bool `json:"dry_run" yaml:"dry_run"`
}

// DefaultSettings regenerates hotkey identifiers and copies media files.
func DefaultSettings() Settings {
	return Settings{GenerateNewIDs: true, CopyMediaFiles: true}
}

func (s Settings) wantsHotkeys() bool {
	return s.AllHotkeys || len(s.HotkeyIDs) > 0 || s.HotkeyFilter != ""
}

func (s Settings) wantsParameters() bool {
	return s.AllParameters || len(s.ParameterNames) > 0
}

// Result is the outcome of a transfer.
type Result struct {
	report.Report `yaml:",inline"`

	SourcePath      string `json:"source" yaml:"source"`
	TargetPath      string `json:"target" yaml:"target"`
	DryRun          bool   `json:"dry_run" yaml:"dry_run"`
	HotkeysAdded    int    `json:"hotkeys_added" yaml:"hotkeys_added"`
	ParametersAdded int    `json:"parameters_added" yaml:"parameters_added"`
	FilesCopied     int    `json:"files_copied" yaml:"files_copied"`
	// CopiedFiles are the target-side paths of media files this transfer
	// created.
	CopiedFiles    []string `json:"copied_files,omitempty" yaml:"copied_files,omitempty"`
	BackupPath     string   `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	CanUndo        bool     `json:"can_undo" yaml:"can_undo"`
	ChangesSummary string   `json:"changes_summary" yaml:"changes_summary"`
}

// Engine runs transfers.
type Engine struct {
	// BackupDir receives pre-transfer backups. Empty places them next to the
	// target document.
	BackupDir string
	Logger    *slog.Logger
}

// NewEngine creates an engine that writes backups to backupDir.
func NewEngine(backupDir string, logger *slog.Logger) *Engine {
	return &Engine{BackupDir: backupDir, Logger: logger}
}

// Transfer copies the entries selected by s from the document at
// sourcePath into the document at targetPath.
func (e *Engine) Transfer(sourcePath, targetPath string, s Settings) *Result {
	res := &Result{
		Report:     *report.New(e.Logger),
		SourcePath: sourcePath,
		TargetPath: targetPath,
		DryRun:     s.DryRun,
	}

	res.Logf("=== Phase 1: Validation ===")
	filter, ok := e.validate(res, sourcePath, targetPath, s)
	if !ok {
		return res
	}

	if !s.DryRun {
		res.Logf("=== Phase 2: Backup ===")
		if e.BackupDir != "" {
			if err := os.MkdirAll(e.BackupDir, 0o755); err != nil {
				res.Errorf("Failed to create backup directory: %v", err)
				return res
			}
		}
		backup, err := fsutil.BackupFile(targetPath, e.BackupDir)
		if err != nil {
			res.Errorf("Failed to create backup: %v", err)
			return res
		}
		res.BackupPath = backup
		res.CanUndo = true
		res.Logf("Backup created: %s", backup)
	}

	res.Logf("=== Phase 3: Load Data ===")
	source, err := vtube.Load(sourcePath)
	if err != nil {
		res.Errorf("Failed to load source document: %v", err)
		return res
	}
	target, err := vtube.Load(targetPath)
	if err != nil {
		res.Errorf("Failed to load target document: %v", err)
		return res
	}

	res.Logf("=== Phase 4: Transfer ===")
	sourceDir := filepath.Dir(sourcePath)
	targetDir := filepath.Dir(targetPath)
	media := e.applyHotkeys(res, source, target, sourceDir, targetDir, filter, s)
	e.applyParameters(res, source, target, s)
	if s.CopyMediaFiles && len(media) > 0 {
		if !e.copyMedia(res, sourceDir, targetDir, media, s.DryRun) {
			res.AddError("Media files could not be copied; target document not saved")
			e.rollback(res)
			return res
		}
	}

	if s.DryRun {
		res.Logf("=== Dry Run Complete (no changes made) ===")
	} else {
		res.Logf("=== Phase 5: Save ===")
		if err := vtube.Save(targetPath, target); err != nil {
			res.Errorf("Failed to save target document: %v", err)
			e.rollback(res)
			return res
		}
		res.Logf("Transfer completed successfully")
	}

	res.ChangesSummary = summarize(res)
	return res
}

func (e *Engine) validate(res *Result, sourcePath, targetPath string, s Settings) (*HotkeyFilter, bool) {
	if same(sourcePath, targetPath) {
		res.AddError("Source and target are the same document")
		return nil, false
	}

	filter, err := CompileFilter(s.HotkeyFilter)
	if err != nil {
		res.Fail(err)
		return nil, false
	}

	source, err := vtube.Load(sourcePath)
	if err != nil {
		res.Errorf("Failed to load source document: %v", err)
		return nil, false
	}
	target, err := vtube.Load(targetPath)
	if err != nil {
		res.Errorf("Failed to load target document: %v", err)
		return nil, false
	}

	valid := true
	if v := vtube.Validate(source); !v.Valid {
		res.AddError("Source document is invalid")
		for _, msg := range v.Errors {
			res.Errorf("  Source: %s", msg)
		}
		valid = false
	}
	if v := vtube.Validate(target); !v.Valid {
		res.AddError("Target document is invalid")
		for _, msg := range v.Errors {
			res.Errorf("  Target: %s", msg)
		}
		valid = false
	}
	if !valid {
		return nil, false
	}

	if !s.wantsHotkeys() && !s.wantsParameters() {
		res.AddWarning("Nothing selected for transfer")
	}

	if s.CopyMediaFiles {
		selected, err := selectHotkeys(source, filter, s)
		if err != nil {
			res.Fail(err)
			return nil, false
		}
		refs := vtube.CheckFileReferences(selected, filepath.Dir(sourcePath))
		for _, w := range refs.Warnings {
			res.AddWarning(w)
		}
	}
	return filter, true
}

// selectHotkeys returns the source hotkeys chosen by s, in source order.
func selectHotkeys(source *vtube.Document, filter *HotkeyFilter, s Settings) ([]vtube.Hotkey, error) {
	var out []vtube.Hotkey
	for i := range source.Hotkeys {
		h := &source.Hotkeys[i]
		pick := s.AllHotkeys || slices.Contains(s.HotkeyIDs, h.ID)
		if !pick && filter != nil {
			match, err := filter.Match(h)
			if err != nil {
				return nil, err
			}
			pick = match
		}
		if pick {
			out = append(out, *h)
		}
	}
	return out, nil
}

// applyHotkeys appends the selected hotkeys to target and returns the
// unique media files, relative to the source folder, that the appended
// hotkeys reference and that still have to be copied.
func (e *Engine) applyHotkeys(res *Result, source, target *vtube.Document, sourceDir, targetDir string, filter *HotkeyFilter, s Settings) []string {
	if !s.wantsHotkeys() {
		return nil
	}

	selected, err := selectHotkeys(source, filter, s)
	if err != nil {
		res.Fail(err)
		return nil
	}
	for _, id := range s.HotkeyIDs {
		if _, ok := source.HotkeyByID(id); !ok {
			res.Warnf("Hotkey ID not found in source: %s", id)
		}
	}
	if len(selected) == 0 {
		res.AddWarning("No hotkeys matched the selection")
		return nil
	}

	var media []string
	var skipped int
	for _, h := range selected {
		if h.File != "" && !filepath.IsLocal(filepath.FromSlash(h.File)) {
			res.Warnf("Skipped '%s': media path '%s' is outside the model folder", h.Name, h.File)
			skipped++
			continue
		}
		if h.File != "" {
			if _, ok := vtube.ResolveMedia(targetDir, h.File); !ok {
				srcPath, inSource := vtube.ResolveMedia(sourceDir, h.File)
				if !s.CopyMediaFiles || !inSource {
					res.Warnf("Skipped '%s': target is missing '%s'", h.Name, h.File)
					skipped++
					continue
				}
				rel, err := filepath.Rel(sourceDir, srcPath)
				if err != nil {
					rel = filepath.FromSlash(h.File)
				}
				if !slices.Contains(media, rel) {
					media = append(media, rel)
				}
			}
		}

		c := h.Clone()
		if s.GenerateNewIDs {
			c.ID = vtube.GenerateID()
			res.Logf("'%s': %s -> %s", c.Name, shortID(h.ID), shortID(c.ID))
		} else if _, exists := target.HotkeyByID(c.ID); exists {
			res.Warnf("Hotkey '%s' keeps ID %s, which already exists in the target", c.Name, c.ID)
		}
		target.Hotkeys = append(target.Hotkeys, c)
		res.HotkeysAdded++
	}

	if res.HotkeysAdded > 0 {
		res.Logf("Transferred %d hotkeys", res.HotkeysAdded)
	}
	if skipped > 0 {
		res.Logf("Skipped %d hotkeys (missing media files)", skipped)
	}
	return media
}

func (e *Engine) applyParameters(res *Result, source, target *vtube.Document, s Settings) {
	if !s.wantsParameters() {
		return
	}

	for _, name := range s.ParameterNames {
		if _, ok := source.ParameterByName(name); !ok {
			res.Warnf("Parameter not found in source: %s", name)
		}
	}

	for _, p := range source.Parameters {
		if !s.AllParameters && !slices.Contains(s.ParameterNames, p.Name) {
			continue
		}
		target.Parameters = append(target.Parameters, p.Clone())
		res.ParametersAdded++
		res.Logf("Parameter '%s': %s -> %s", p.Name, p.Input, p.Output)
	}

	if res.ParametersAdded == 0 {
		res.AddWarning("No parameters matched the selection")
		return
	}
	res.Logf("Transferred %d parameters", res.ParametersAdded)
}

// copyMedia copies files (relative to sourceDir) into targetDir. Files
// already present at the destination or missing at the source are skipped
// with a warning. It reports false if any copy failed.
func (e *Engine) copyMedia(res *Result, sourceDir, targetDir string, files []string, dryRun bool) bool {
	ok := true
	for _, rel := range files {
		src := filepath.Join(sourceDir, rel)
		dst := filepath.Join(targetDir, rel)
		name := filepath.ToSlash(rel)

		if !fsutil.FileExists(src) {
			res.Warnf("Source file not found: %s", name)
			continue
		}
		if fsutil.FileExists(dst) {
			res.Warnf("Target file already exists (skipping): %s", name)
			continue
		}
		if dryRun {
			res.FilesCopied++
			res.Logf("Would copy: %s", name)
			continue
		}
		if err := fsutil.CopyFile(src, dst); err != nil {
			res.Errorf("Failed to copy %s: %v", name, err)
			ok = false
			continue
		}
		res.FilesCopied++
		res.CopiedFiles = append(res.CopiedFiles, dst)
		res.Logf("Copied: %s", name)
	}
	return ok
}

// rollback restores the phase-2 backup onto the target and removes media
// files this transfer created.
func (e *Engine) rollback(res *Result) {
	if res.BackupPath == "" {
		return
	}
	res.Logf("Attempting rollback...")
	for _, f := range res.CopiedFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			res.Warnf("Failed to remove copied file %s: %v", f, err)
		}
	}
	res.CopiedFiles = nil
	if err := fsutil.CopyFile(res.BackupPath, res.TargetPath); err != nil {
		res.Errorf("Rollback failed: %v (backup kept at %s)", err, res.BackupPath)
		return
	}
	res.Logf("Rollback successful")
}

// Undo restores the pre-transfer state recorded in res: the target document
// is overwritten with its backup and media files the transfer created are
// removed.
func (e *Engine) Undo(res *Result) error {
	if !res.CanUndo || res.BackupPath == "" {
		return fmt.Errorf("transfer cannot be undone: no backup was taken")
	}
	if err := RestoreBackup(res.BackupPath, res.TargetPath); err != nil {
		return err
	}
	for _, f := range res.CopiedFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove copied file %s: %w", f, err)
		}
	}
	res.CanUndo = false
	return nil
}

// RestoreBackup overwrites targetPath with the document backup at
// backupPath.
func RestoreBackup(backupPath, targetPath string) error {
	if !fsutil.FileExists(backupPath) {
		return &vtube.NotFoundError{Kind: "backup", Name: backupPath}
	}
	if err := fsutil.CopyFile(backupPath, targetPath); err != nil {
		return &vtube.IOError{Op: "restore", Path: targetPath, Err: err}
	}
	return nil
}

func summarize(res *Result) string {
	var parts []string
	if res.HotkeysAdded > 0 {
		parts = append(parts, fmt.Sprintf("%d hotkeys", res.HotkeysAdded))
	}
	if res.ParametersAdded > 0 {
		parts = append(parts, fmt.Sprintf("%d parameters", res.ParametersAdded))
	}
	if res.FilesCopied > 0 {
		parts = append(parts, fmt.Sprintf("%d files", res.FilesCopied))
	}
	if len(parts) == 0 {
		return "No changes made"
	}
	verb := "Transferred"
	if res.DryRun {
		verb = "Would transfer"
	}
	return verb + ": " + strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func same(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
