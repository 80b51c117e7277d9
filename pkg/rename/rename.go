// Package rename renames and duplicates entity folders together with their
// configuration document.
package rename

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/install"
	"github.com/CliForge/vtsconf/pkg/report"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

// Result is the outcome of a rename or duplicate.
type Result struct {
	report.Report `yaml:",inline"`

	OldFolder   string `json:"old_folder" yaml:"old_folder"`
	NewFolder   string `json:"new_folder,omitempty" yaml:"new_folder,omitempty"`
	OldDocument string `json:"old_document,omitempty" yaml:"old_document,omitempty"`
	NewDocument string `json:"new_document,omitempty" yaml:"new_document,omitempty"`
	OldName     string `json:"old_name,omitempty" yaml:"old_name,omitempty"`
	NewName     string `json:"new_name" yaml:"new_name"`
	OldID       string `json:"old_id,omitempty" yaml:"old_id,omitempty"`
	NewID       string `json:"new_id,omitempty" yaml:"new_id,omitempty"`
	BackupPath  string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`

	// Err is the typed cause of a failure, for errors.As classification.
	Err error `json:"-" yaml:"-"`
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.Fail(err)
	return r
}

// Operator renames and duplicates entities.
type Operator struct {
	Logger *slog.Logger
}

// New creates an operator.
func New(logger *slog.Logger) *Operator {
	return &Operator{Logger: logger}
}

func (o *Operator) newResult(folder, newName string) *Result {
	return &Result{Report: *report.New(o.Logger), OldFolder: folder, NewName: newName}
}

// ValidateRename checks newName for the entity in folder: it must be a valid
// name, differ from the document's current name, and not collide with a
// sibling folder. Name rule failures are *vtube.ValidationError, a sibling
// collision is *vtube.ConflictError.
func ValidateRename(folder, newName string) error {
	if err := fsutil.CheckName(newName); err != nil {
		return &vtube.ValidationError{Path: folder, Failures: []string{err.Error()}}
	}

	docPath, err := install.FindDocument(folder)
	if err != nil {
		return err
	}
	doc, err := vtube.Load(docPath)
	if err != nil {
		return err
	}
	if doc.Name == newName {
		return &vtube.ValidationError{Path: folder, Failures: []string{"new name is the same as the current name"}}
	}
	return checkSibling(folder, newName)
}

// checkSibling fails if a folder other than folder itself already exists
// under newName next to it.
func checkSibling(folder, newName string) error {
	sibling := filepath.Join(filepath.Dir(folder), newName)
	info, err := os.Stat(sibling)
	if err != nil {
		return nil
	}
	if self, err := os.Stat(folder); err == nil && os.SameFile(self, info) {
		return nil
	}
	return &vtube.ConflictError{Path: sibling, Reason: "a folder with this name already exists"}
}

// sameFile reports whether a and b both exist and name the same file.
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// Rename gives the entity in folder the display name newName. The document
// is backed up, rewritten under the new file name, and the folder renamed to
// match. If newID is set the entity also gets a fresh identifier. Nothing is
// changed when a precondition fails.
func (o *Operator) Rename(folder, newName string, newID bool) *Result {
	res := o.newResult(folder, newName)

	if err := ValidateRename(folder, newName); err != nil {
		return res.fail(err)
	}
	docPath, err := install.FindDocument(folder)
	if err != nil {
		return res.fail(err)
	}
	res.OldDocument = docPath

	original, err := os.ReadFile(docPath)
	if err != nil {
		return res.fail(&vtube.IOError{Op: "read", Path: docPath, Err: err})
	}
	backup, err := fsutil.BackupFile(docPath, "")
	if err != nil {
		return res.fail(&vtube.IOError{Op: "backup", Path: docPath, Err: err})
	}
	res.BackupPath = backup
	res.Logf("Backup created: %s", filepath.Base(backup))

	doc, err := vtube.Load(docPath)
	if err != nil {
		return res.fail(err)
	}
	res.OldName = doc.Name
	res.OldID = doc.ModelID

	doc.Name = newName
	if newID {
		doc.ModelID = vtube.GenerateID()
		res.Logf("New ID: %s", doc.ModelID)
	}
	res.NewID = doc.ModelID

	newDocPath := filepath.Join(folder, vtube.FileName(newName))
	written := newDocPath
	if newDocPath != docPath && sameFile(docPath, newDocPath) {
		// Only the letter case changed and the filesystem ignores case:
		// both names refer to the current document.
		written = docPath
	}
	if err := vtube.Save(written, doc); err != nil {
		o.revert(res, docPath, written, original)
		return res.fail(err)
	}
	res.Logf("Saved: %s", filepath.Base(newDocPath))

	switch {
	case written != docPath:
		if err := os.Remove(docPath); err != nil {
			o.revert(res, docPath, newDocPath, original)
			return res.fail(&vtube.IOError{Op: "remove", Path: docPath, Err: err})
		}
	case newDocPath != docPath:
		if err := os.Rename(docPath, newDocPath); err != nil {
			o.revert(res, docPath, docPath, original)
			return res.fail(&vtube.IOError{Op: "rename", Path: docPath, Err: err})
		}
	}

	res.NewFolder = folder
	res.NewDocument = newDocPath
	if filepath.Base(folder) != newName {
		newFolder := filepath.Join(filepath.Dir(folder), newName)
		if err := checkSibling(folder, newName); err != nil {
			o.revert(res, docPath, newDocPath, original)
			return res.fail(err)
		}
		if err := os.Rename(folder, newFolder); err != nil {
			o.revert(res, docPath, newDocPath, original)
			return res.fail(&vtube.IOError{Op: "rename", Path: folder, Err: err})
		}
		res.NewFolder = newFolder
		res.NewDocument = filepath.Join(newFolder, filepath.Base(newDocPath))
		res.BackupPath = filepath.Join(newFolder, filepath.Base(backup))
		res.Logf("Renamed folder: %s -> %s", filepath.Base(folder), newName)
	}

	res.Logf("Renamed %q to %q", res.OldName, newName)
	return res
}

// revert puts the original document bytes back at docPath and removes the
// file written under the new name.
func (o *Operator) revert(res *Result, docPath, newDocPath string, original []byte) {
	if newDocPath != docPath {
		if err := os.Remove(newDocPath); err != nil && !os.IsNotExist(err) {
			res.Warnf("Failed to remove %s: %v", newDocPath, err)
		}
	}
	if current, err := os.ReadFile(docPath); err == nil && bytes.Equal(current, original) {
		return
	}
	if err := os.WriteFile(docPath, original, 0o644); err != nil {
		res.Errorf("Failed to restore %s: %v (backup kept at %s)", docPath, err, res.BackupPath)
		return
	}
	res.Logf("Reverted %s", filepath.Base(docPath))
}

// Duplicate copies the entity in folder to a sibling folder named newName,
// leaving out backup copies, and renames the copy's document to newName
// with a fresh identifier. The source entity is not modified.
func (o *Operator) Duplicate(folder, newName string) *Result {
	res := o.newResult(folder, newName)

	if err := fsutil.CheckName(newName); err != nil {
		return res.fail(&vtube.ValidationError{Path: folder, Failures: []string{err.Error()}})
	}
	docPath, err := install.FindDocument(folder)
	if err != nil {
		return res.fail(err)
	}
	res.OldDocument = docPath

	dest := filepath.Join(filepath.Dir(folder), newName)
	if _, err := os.Stat(dest); err == nil {
		return res.fail(&vtube.ConflictError{Path: dest, Reason: "a folder with this name already exists"})
	}

	if err := fsutil.CopyDir(folder, dest, vtube.IsBackupName); err != nil {
		os.RemoveAll(dest)
		return res.fail(&vtube.IOError{Op: "copy", Path: folder, Err: err})
	}
	res.Logf("Copied %s -> %s", filepath.Base(folder), newName)

	copied := filepath.Join(dest, filepath.Base(docPath))
	doc, err := vtube.Load(copied)
	if err != nil {
		os.RemoveAll(dest)
		return res.fail(err)
	}
	res.OldName = doc.Name
	res.OldID = doc.ModelID
	doc.Name = newName
	doc.ModelID = vtube.GenerateID()
	res.NewID = doc.ModelID

	newDocPath := filepath.Join(dest, vtube.FileName(newName))
	if err := vtube.Save(newDocPath, doc); err != nil {
		os.RemoveAll(dest)
		return res.fail(err)
	}
	if newDocPath != copied {
		if err := os.Remove(copied); err != nil {
			os.RemoveAll(dest)
			return res.fail(&vtube.IOError{Op: "remove", Path: copied, Err: err})
		}
	}

	res.NewFolder = dest
	res.NewDocument = newDocPath
	res.Logf("Duplicated %q as %q (new ID %s)", res.OldName, newName, res.NewID)
	return res
}

// Describe is a one-line summary of a successful result.
func (r *Result) Describe() string {
	if !r.Success {
		return fmt.Sprintf("failed: %v", r.Err)
	}
	return fmt.Sprintf("%s -> %s", filepath.Base(r.OldFolder), filepath.Base(r.NewFolder))
}
