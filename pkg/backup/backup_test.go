package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/archive"
	"github.com/CliForge/vtsconf/pkg/install"
)

func fixedClock(t *testing.T) {
	t.Helper()
	orig := fsutil.Now
	fsutil.Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }
	t.Cleanup(func() { fsutil.Now = orig })
}

// steppingClock advances one minute on every read.
func steppingClock(t *testing.T) {
	t.Helper()
	orig := fsutil.Now
	base := time.Date(2024, 3, 9, 14, 0, 0, 0, time.Local)
	n := 0
	fsutil.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	t.Cleanup(func() { fsutil.Now = orig })
}

func newInstallation(t *testing.T) *install.Installation {
	t.Helper()
	root := t.TempDir()
	assets := filepath.Join(root, install.DataDirName, install.StreamingAssetsDirName)
	write(t, filepath.Join(assets, "Config", "vts_config.json"), `{"a":1}`)
	write(t, filepath.Join(assets, "Config", "Plugins", "deck.vtsauth"), "token")
	write(t, filepath.Join(assets, "Live2DModels", "Alice", "Alice.vtube.json"), `{"Name":"Alice"}`)

	inst, err := install.Discover(root)
	require.NoError(t, err)
	return inst
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newOrchestrator(t *testing.T) *Orchestrator {
	return New(archive.NewCodec("1.28.0", nil), filepath.Join(t.TempDir(), "backups"), nil)
}

func TestCreate_AutoNamed(t *testing.T) {
	fixedClock(t)
	inst := newInstallation(t)
	o := newOrchestrator(t)

	first, err := o.Create(inst, archive.DefaultFlags(), "before update")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(o.Dir, "vts_backup_20240309_140507.zip"), first)

	second, err := o.Create(inst, archive.DefaultFlags(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(o.Dir, "vts_backup_20240309_140507_2.zip"), second)

	m, err := archive.ReadManifest(first)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "before update", m.Notes)
	assert.Equal(t, archive.ReasonManual, m.Reason)
	assert.Equal(t, "1.28.0", m.AppVersion)
	assert.Equal(t, inst.Root, m.InstallPath)
	assert.Empty(t, o.Codec.InstallPath)
}

func TestCreate_NoDirectory(t *testing.T) {
	o := New(archive.NewCodec("", nil), "", nil)
	_, err := o.Create(newInstallation(t), archive.DefaultFlags(), "")
	assert.Error(t, err)
}

func TestRestore_TakesSafetyBackup(t *testing.T) {
	steppingClock(t)
	inst := newInstallation(t)
	o := newOrchestrator(t)

	flags := archive.DefaultFlags()
	flags.PluginAuth = true
	saved, err := o.Create(inst, flags, "")
	require.NoError(t, err)

	write(t, inst.GlobalSettingsPath(), `{"a":2}`)

	rep := o.Restore(saved, inst, flags, true)
	require.True(t, rep.Success, rep.Errors)
	assert.Equal(t, `{"a":1}`, read(t, inst.GlobalSettingsPath()))
	assert.Equal(t, 3, rep.FilesRestored)
	require.NotEmpty(t, rep.SafetyBackupPath)
	assert.FileExists(t, rep.SafetyBackupPath)

	m, err := archive.ReadManifest(rep.SafetyBackupPath)
	require.NoError(t, err)
	assert.Equal(t, archive.ReasonPreRestore, m.Reason)
	assert.False(t, m.Options.PluginAuth)
	for _, f := range m.Files {
		assert.False(t, strings.HasSuffix(f.Path, install.PluginAuthExt), f.Path)
	}

	// The safety backup holds the state the restore replaced.
	scratch := t.TempDir()
	undo := o.Codec.Restore(rep.SafetyBackupPath, scratch, archive.DefaultFlags())
	require.True(t, undo.Success, undo.Errors)
	assert.Equal(t, `{"a":2}`, read(t, filepath.Join(scratch, "Config", "vts_config.json")))
}

func TestRestore_SafetyBackupCoversWholeTree(t *testing.T) {
	steppingClock(t)
	inst := newInstallation(t)
	o := newOrchestrator(t)

	only := archive.Flags{GlobalConfig: true}
	saved, err := o.Create(inst, only, "")
	require.NoError(t, err)

	rep := o.Restore(saved, inst, only, true)
	require.True(t, rep.Success, rep.Errors)
	require.NotEmpty(t, rep.SafetyBackupPath)

	m, err := archive.ReadManifest(rep.SafetyBackupPath)
	require.NoError(t, err)
	assert.Equal(t, archive.DefaultFlags(), m.Options)
	var paths []string
	for _, f := range m.Files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{
		"Config/vts_config.json",
		"Live2DModels/Alice/Alice.vtube.json",
	}, paths)
}

func TestRestore_SafetyBackupDisabled(t *testing.T) {
	steppingClock(t)
	inst := newInstallation(t)
	o := newOrchestrator(t)

	saved, err := o.Create(inst, archive.DefaultFlags(), "")
	require.NoError(t, err)

	rep := o.Restore(saved, inst, archive.DefaultFlags(), false)
	require.True(t, rep.Success, rep.Errors)
	assert.Empty(t, rep.SafetyBackupPath)

	backups, err := o.List()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRestore_MissingArchive(t *testing.T) {
	inst := newInstallation(t)
	o := newOrchestrator(t)

	rep := o.Restore(filepath.Join(o.Dir, "nope.zip"), inst, archive.DefaultFlags(), true)
	assert.False(t, rep.Success)
	assert.Empty(t, rep.SafetyBackupPath)
	assert.NoDirExists(t, o.Dir)
}

func TestListAndPrune(t *testing.T) {
	steppingClock(t)
	inst := newInstallation(t)
	o := newOrchestrator(t)

	var created []string
	for range 3 {
		p, err := o.Create(inst, archive.DefaultFlags(), "")
		require.NoError(t, err)
		created = append(created, p)
	}
	write(t, filepath.Join(o.Dir, "notes.txt"), "keep me")

	backups, err := o.List()
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, created[2], backups[0].Path)
	assert.Equal(t, created[0], backups[2].Path)
	assert.NotNil(t, backups[0].Manifest)
	assert.Positive(t, backups[0].Size)

	removed, err := o.Prune(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, created[:2], removed)
	assert.FileExists(t, created[2])
	assert.FileExists(t, filepath.Join(o.Dir, "notes.txt"))

	removed, err = o.Prune(5)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = o.Prune(-1)
	assert.Error(t, err)
}

func TestList_MissingDirectory(t *testing.T) {
	o := newOrchestrator(t)
	backups, err := o.List()
	require.NoError(t, err)
	assert.Empty(t, backups)
}
