// Package state keeps the journal of operations that changed an
// installation, so they can be listed and the latest one undone.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind names the operation an entry records.
type Kind string

const (
	KindTransfer     Kind = "transfer"
	KindRestore      Kind = "restore"
	KindRename       Kind = "rename"
	KindDuplicate    Kind = "duplicate"
	KindBackup       Kind = "backup"
	KindProfileApply Kind = "profile_apply"
)

// Undoable reports whether operations of kind k leave a backup that undo
// can put back.
func (k Kind) Undoable() bool {
	switch k {
	case KindTransfer, KindProfileApply, KindRestore:
		return true
	}
	return false
}

// Entry is one recorded operation.
type Entry struct {
	ID        int       `json:"id" yaml:"id"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Target    string    `json:"target" yaml:"target"`
	Success   bool      `json:"success" yaml:"success"`
	Summary   string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// BackupPath is the file undo restores: a document backup for
	// transfers and profile applies, a safety archive for restores.
	BackupPath string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	Undone     bool   `json:"undone,omitempty" yaml:"undone,omitempty"`
}

// CanUndo reports whether the entry can still be undone.
func (e *Entry) CanUndo() bool {
	return e.Success && !e.Undone && e.BackupPath != "" && e.Kind.Undoable()
}

// HistoryData represents the structure of the history file.
type HistoryData struct {
	History    []*Entry `json:"history"`
	MaxEntries int      `json:"max_entries"`
	Version    string   `json:"version,omitempty"`
}

const (
	// DefaultMaxHistoryEntries is the default maximum number of history entries.
	DefaultMaxHistoryEntries = 200

	// HistoryVersion is the current history file format version.
	HistoryVersion = "1.0"
)

// History manages the operation journal stored at one path.
type History struct {
	path       string
	entries    []*Entry
	maxEntries int
	mu         sync.RWMutex
}

// Open loads the history at path. A missing file yields an empty history.
func Open(path string, maxEntries int) (*History, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxHistoryEntries
	}
	h := &History{
		path:       path,
		entries:    make([]*Entry, 0),
		maxEntries: maxEntries,
	}
	if err := h.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return h, nil
}

// Load loads history from disk.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if err != nil {
		return err
	}

	var historyData HistoryData
	if err := json.Unmarshal(data, &historyData); err != nil {
		return fmt.Errorf("failed to parse history file: %w", err)
	}
	h.entries = historyData.History
	if h.entries == nil {
		h.entries = make([]*Entry, 0)
	}
	h.trim()
	return nil
}

// Save saves history to disk.
func (h *History) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(HistoryData{
		History:    h.entries,
		MaxEntries: h.maxEntries,
		Version:    HistoryVersion,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// Write to file with atomic rename
	tmpPath := h.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmpPath, h.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save history file: %w", err)
	}
	return nil
}

// Add appends an entry, assigning its ID and, if unset, its timestamp.
func (h *History) Add(entry *Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.ID = 1
	if len(h.entries) > 0 {
		entry.ID = h.entries[len(h.entries)-1].ID + 1
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	h.entries = append(h.entries, entry)
	h.trim()
}

// trim drops the oldest entries beyond maxEntries. IDs are kept.
func (h *History) trim() {
	if len(h.entries) > h.maxEntries {
		h.entries = h.entries[len(h.entries)-h.maxEntries:]
	}
}

// Record adds an entry and saves the history.
func (h *History) Record(entry *Entry) error {
	h.Add(entry)
	return h.Save()
}

// Get returns a history entry by ID.
func (h *History) Get(id int) (*Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, entry := range h.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("history entry %d not found", id)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []*Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]*Entry, 0, n)
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		entryCopy := *h.entries[i]
		out = append(out, &entryCopy)
	}
	return out
}

// LastUndoable returns the newest entry that can still be undone.
func (h *History) LastUndoable() (*Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].CanUndo() {
			return h.entries[i], true
		}
	}
	return nil, false
}

// MarkUndone flags entry id as undone and saves the history.
func (h *History) MarkUndone(id int) error {
	entry, err := h.Get(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	entry.Undone = true
	h.mu.Unlock()
	return h.Save()
}

// Clear removes all entries and saves the history.
func (h *History) Clear() error {
	h.mu.Lock()
	h.entries = make([]*Entry, 0)
	h.mu.Unlock()
	return h.Save()
}

// Count returns the number of history entries.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Path returns the path to the history file.
func (h *History) Path() string {
	return h.path
}

// Stats summarizes the history.
type Stats struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	ByKind    map[Kind]int `json:"by_kind"`
	First     time.Time    `json:"first"`
	Last      time.Time    `json:"last"`
}

// GetStats returns statistics about the history.
func (h *History) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{Total: len(h.entries), ByKind: map[Kind]int{}}
	for _, entry := range h.entries {
		if entry.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		stats.ByKind[entry.Kind]++
		if stats.First.IsZero() || entry.Timestamp.Before(stats.First) {
			stats.First = entry.Timestamp
		}
		if entry.Timestamp.After(stats.Last) {
			stats.Last = entry.Timestamp
		}
	}
	return stats
}
