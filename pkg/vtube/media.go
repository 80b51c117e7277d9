package vtube

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/CliForge/vtsconf/internal/fsutil"
)

// ExpressionFiles lists *.exp3.json files in an entity folder and its
// Expressions subfolder, relative to folder.
func ExpressionFiles(folder string) []string {
	return mediaFiles(folder, "Expressions", "*.exp3.json")
}

// AnimationFiles lists *.motion3.json files in an entity folder and its
// Animations subfolder, relative to folder.
func AnimationFiles(folder string) []string {
	return mediaFiles(folder, "Animations", "*.motion3.json")
}

func mediaFiles(folder, sub, pattern string) []string {
	var files []string
	if matches, err := filepath.Glob(filepath.Join(folder, pattern)); err == nil {
		for _, m := range matches {
			files = append(files, filepath.Base(m))
		}
	}
	if matches, err := filepath.Glob(filepath.Join(folder, sub, pattern)); err == nil {
		for _, m := range matches {
			files = append(files, sub+"/"+filepath.Base(m))
		}
	}
	sort.Strings(files)
	return files
}

// ResolveMedia returns the path of a hotkey's media file inside folder,
// falling back to the Expressions subfolder. ok is false if neither exists
// or if file does not stay inside folder.
func ResolveMedia(folder, file string) (path string, ok bool) {
	path = filepath.Join(folder, filepath.FromSlash(file))
	if !filepath.IsLocal(filepath.FromSlash(file)) {
		return path, false
	}
	if fsutil.FileExists(path) {
		return path, true
	}
	alt := filepath.Join(folder, "Expressions", filepath.FromSlash(file))
	if fsutil.FileExists(alt) {
		return alt, true
	}
	return path, false
}

// CheckFileReferences warns for every hotkey whose media file is missing
// from folder.
func CheckFileReferences(hotkeys []Hotkey, folder string) *ValidationResult {
	result := &ValidationResult{Valid: true}
	for i := range hotkeys {
		h := &hotkeys[i]
		if h.File == "" {
			continue
		}
		if _, ok := ResolveMedia(folder, h.File); !ok {
			result.AddWarning(fmt.Sprintf("Hotkey '%s': File not found: %s", h.Name, h.File))
		}
	}
	return result
}
