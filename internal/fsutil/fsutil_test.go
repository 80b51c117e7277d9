package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T) {
	t.Helper()
	orig := Now
	Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }
	t.Cleanup(func() { Now = orig })
}

func TestBackupName(t *testing.T) {
	fixedClock(t)

	assert.Equal(t, "Alice.vtube.backup_20240309_140507.json", BackupName("Alice.vtube.json"))
	assert.Equal(t, "vts_config.backup_20240309_140507.json", BackupName("vts_config.json"))
	assert.Equal(t, "notes.backup_20240309_140507.json", BackupName("notes"))
}

func TestBackupFile(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "Alice.vtube.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"Name":"Alice"}`), 0644))

	path, err := BackupFile(src, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Alice.vtube.backup_20240309_140507.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"Name":"Alice"}`, string(data))

	other := t.TempDir()
	path, err = BackupFile(src, other)
	require.NoError(t, err)
	assert.Equal(t, other, filepath.Dir(path))

	_, err = BackupFile(filepath.Join(dir, "missing.json"), "")
	assert.Error(t, err)
}

func TestBackupFile_SameSecond(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "Target.vtube.json")

	var paths []string
	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, os.WriteFile(src, []byte(content), 0644))
		path, err := BackupFile(src, "")
		require.NoError(t, err)
		paths = append(paths, path)
	}

	assert.Equal(t, []string{
		filepath.Join(dir, "Target.vtube.backup_20240309_140507.json"),
		filepath.Join(dir, "Target.vtube.backup_20240309_140507_2.json"),
		filepath.Join(dir, "Target.vtube.backup_20240309_140507_3.json"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "first", string(data), "earlier backups are not overwritten")
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Expressions"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Alice.vtube.json"), []byte("doc"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Alice.vtube.json.original"), []byte("old"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Expressions", "smile.exp3.json"), []byte("exp"), 0644))

	dst := filepath.Join(t.TempDir(), "copy")
	err := CopyDir(src, dst, func(name string) bool { return strings.HasSuffix(name, ".original") })
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dst, "Alice.vtube.json"))
	assert.FileExists(t, filepath.Join(dst, "Expressions", "smile.exp3.json"))
	assert.NoFileExists(t, filepath.Join(dst, "Alice.vtube.json.original"))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.NoFileExists(t, path+".tmp")
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "nope")))
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr string
	}{
		{"Alicia", ""},
		{"Alice v2 (summer)", ""},
		{"", "empty"},
		{"   ", "empty"},
		{"a/b", "invalid characters"},
		{`a\b`, "invalid characters"},
		{"what?", "invalid characters"},
		{"<tag>", "invalid characters"},
		{"..", "must not be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckName(tt.name)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
