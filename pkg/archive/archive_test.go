package archive

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourceTree builds a StreamingAssets folder with one file per category.
func sourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Config/vts_config.json":                         `{"StringData":[]}`,
		"Config/custom_parameters.json":                  `{"CustomParameters":[]}`,
		"Config/vts_lipsync_ulipsync.json":               `{"lipsync":true}`,
		"Config/webcam_calibration_mediapipe.json":       `{"calibration":1}`,
		"Config/Plugins/plugin.vtsauth":                  `token`,
		"Effects/vts_saved_visual_effects.effects.json":  `{"effects":[]}`,
		"Live2DModels/Alice/Alice.vtube.json":            `{"Name":"Alice"}`,
		"Live2DModels/Alice/Alice.vtube.json.original":   `{"Name":"Old"}`,
		"Live2DModels/Alice/Alice - Kopie.vtube.json":    `{"Name":"Copy"}`,
		"Live2DModels/Alice/alice.model3.json":           `{}`,
		"Items/Hat/Hat.vtube.json":                       `{"Name":"Hat"}`,
		"Backgrounds/sky.png":                            "png-bytes",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func allFlags() Flags {
	f := DefaultFlags()
	f.PluginAuth = true
	f.Backgrounds = true
	return f
}

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestCreate(t *testing.T) {
	src := sourceTree(t)
	dest := filepath.Join(t.TempDir(), "out", "backup.zip")
	codec := NewCodec("1.32.67", nil)

	path, err := codec.Create(src, dest, DefaultFlags(), "before update", "")
	require.NoError(t, err)
	assert.Equal(t, dest, path)
	assert.NoFileExists(t, dest+".tmp")

	names := entryNames(t, dest)
	require.NotEmpty(t, names)
	assert.Equal(t, ManifestName, names[0])
	assert.ElementsMatch(t, []string{
		ManifestName,
		"Config/vts_config.json",
		"Config/custom_parameters.json",
		"Config/vts_lipsync_ulipsync.json",
		"Config/webcam_calibration_mediapipe.json",
		"Effects/vts_saved_visual_effects.effects.json",
		"Live2DModels/Alice/Alice.vtube.json",
		"Items/Hat/Hat.vtube.json",
	}, names)

	m, err := ReadManifest(dest)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, FormatVersion, m.Version)
	assert.Equal(t, "1.32.67", m.AppVersion)
	assert.Equal(t, src, m.InstallPath)
	assert.Equal(t, "before update", m.Notes)
	assert.Equal(t, ReasonManual, m.Reason)
	assert.Equal(t, DefaultFlags(), m.Options)
	assert.Len(t, m.Files, 7)
	assert.False(t, m.CreatedAt().IsZero())
}

func TestCreate_MissingTree(t *testing.T) {
	_, err := NewCodec("", nil).Create(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "a.zip"), DefaultFlags(), "", "")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	src := sourceTree(t)
	dest := filepath.Join(t.TempDir(), "backup.zip")
	codec := NewCodec("test", nil)

	var progressed int
	codec.Progress = func(done, total int, name string) { progressed = done }

	_, err := codec.Create(src, dest, allFlags(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 9, progressed)

	target := t.TempDir()
	rep := codec.Restore(dest, target, allFlags())
	require.True(t, rep.Success, rep.Errors)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, 9, rep.FilesRestored)
	assert.Equal(t, 0, rep.FilesSkipped)

	m, err := ReadManifest(dest)
	require.NoError(t, err)
	for _, f := range m.Files {
		want, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(f.Path)))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(f.Path)))
		require.NoError(t, err, f.Path)
		assert.Equal(t, want, got, f.Path)
	}
	assert.NoFileExists(t, filepath.Join(target, "Live2DModels", "Alice", "Alice.vtube.json.original"))
	assert.NoFileExists(t, filepath.Join(target, "Live2DModels", "Alice", "alice.model3.json"))
}

func TestRestore_FlagsGateCategories(t *testing.T) {
	src := sourceTree(t)
	dest := filepath.Join(t.TempDir(), "backup.zip")
	codec := NewCodec("test", nil)
	_, err := codec.Create(src, dest, allFlags(), "", "")
	require.NoError(t, err)

	flags := Flags{ModelConfigs: true}
	target := t.TempDir()
	rep := codec.Restore(dest, target, flags)
	require.True(t, rep.Success)
	assert.Equal(t, 1, rep.FilesRestored)
	assert.Equal(t, 8, rep.FilesSkipped)

	assert.FileExists(t, filepath.Join(target, "Live2DModels", "Alice", "Alice.vtube.json"))
	assert.NoDirExists(t, filepath.Join(target, "Config"))
	assert.NoDirExists(t, filepath.Join(target, "Items"))
}

func TestCreate_ExcludedCategoriesAbsent(t *testing.T) {
	src := sourceTree(t)
	dest := filepath.Join(t.TempDir(), "backup.zip")
	flags := Flags{GlobalConfig: true}

	_, err := NewCodec("", nil).Create(src, dest, flags, "", "")
	require.NoError(t, err)

	target := t.TempDir()
	rep := NewCodec("", nil).Restore(dest, target, flags)
	require.True(t, rep.Success)
	assert.Equal(t, 1, rep.FilesRestored)
	assert.FileExists(t, filepath.Join(target, "Config", "vts_config.json"))
	assert.NoFileExists(t, filepath.Join(target, "Config", "Plugins", "plugin.vtsauth"))
}

// writeZip builds an archive by hand from ordered name/content pairs.
func writeZip(t *testing.T, path string, entries ...[2]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestRestore_MissingManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.zip")
	writeZip(t, path,
		[2]string{"Config/vts_config.json", `{"a":1}`},
		[2]string{"Live2DModels/Bob/Bob.vtube.json", `{"Name":"Bob"}`},
	)

	target := t.TempDir()
	rep := NewCodec("", nil).Restore(path, target, DefaultFlags())

	assert.True(t, rep.Success)
	assert.Equal(t, 2, rep.FilesRestored)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "manifest missing")
	assert.Nil(t, rep.Manifest)
	assert.FileExists(t, filepath.Join(target, "Live2DModels", "Bob", "Bob.vtube.json"))
}

func TestRestore_RejectsEscapingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.zip")
	writeZip(t, path,
		[2]string{"../Live2DModels/evil.vtube.json", `{}`},
		[2]string{"Live2DModels/Good/Good.vtube.json", `{}`},
	)

	parent := t.TempDir()
	target := filepath.Join(parent, "tree")
	rep := NewCodec("", nil).Restore(path, target, DefaultFlags())

	assert.False(t, rep.Success)
	assert.Equal(t, 1, rep.FilesRestored)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "escapes")
	assert.NoFileExists(t, filepath.Join(parent, "Live2DModels", "evil.vtube.json"))
}

func TestRestore_ChecksumMismatch(t *testing.T) {
	manifest, err := json.Marshal(Manifest{
		Version: FormatVersion,
		Files:   []FileEntry{{Path: "Config/vts_config.json", Size: 7, SHA256: "00"}},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tampered.zip")
	writeZip(t, path,
		[2]string{ManifestName, string(manifest)},
		[2]string{"Config/vts_config.json", `{"a":1}`},
		[2]string{"Items/Hat/Hat.vtube.json", `{}`},
	)

	target := t.TempDir()
	rep := NewCodec("", nil).Restore(path, target, DefaultFlags())
	assert.False(t, rep.Success)
	assert.Equal(t, 1, rep.FilesRestored)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "checksum mismatch")
	assert.NoFileExists(t, filepath.Join(target, "Config", "vts_config.json"))

	valid, issues := NewCodec("", nil).Validate(path)
	assert.False(t, valid)
	assert.Contains(t, issues, Issue{Severity: SeverityError, Message: "Checksum mismatch: Config/vts_config.json"})
}

func TestRestore_MissingArchive(t *testing.T) {
	rep := NewCodec("", nil).Restore(filepath.Join(t.TempDir(), "nope.zip"), t.TempDir(), DefaultFlags())
	assert.False(t, rep.Success)
	assert.Contains(t, rep.Errors[0], "not found")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	codec := NewCodec("", nil)

	good := filepath.Join(dir, "good.zip")
	_, err := codec.Create(sourceTree(t), good, DefaultFlags(), "", "")
	require.NoError(t, err)
	valid, issues := codec.Validate(good)
	assert.True(t, valid)
	assert.Empty(t, issues)

	noSettings := filepath.Join(dir, "nosettings.zip")
	writeZip(t, noSettings, [2]string{ManifestName, `{"backup_version":1}`}, [2]string{"Items/Hat/Hat.vtube.json", `{}`})
	valid, issues = codec.Validate(noSettings)
	assert.True(t, valid)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Warning: No vts_config.json found", issues[0].String())

	noManifest := filepath.Join(dir, "nomanifest.zip")
	writeZip(t, noManifest, [2]string{"Config/vts_config.json", `{}`})
	valid, issues = codec.Validate(noManifest)
	assert.False(t, valid)
	assert.Contains(t, issues, Issue{Severity: SeverityError, Message: "Missing backup manifest"})

	notZip := filepath.Join(dir, "plain.zip")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip"), 0644))
	valid, issues = codec.Validate(notZip)
	assert.False(t, valid)
	assert.Equal(t, "File is not a valid ZIP archive", issues[0].Message)

	valid, _ = codec.Validate(filepath.Join(dir, "missing.zip"))
	assert.False(t, valid)
}

func TestList(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backup.zip")
	_, err := NewCodec("", nil).Create(sourceTree(t), dest, Flags{GlobalConfig: true, ModelConfigs: true}, "", "")
	require.NoError(t, err)

	entries, manifest, err := List(dest)
	require.NoError(t, err)
	require.NotNil(t, manifest)
	require.Len(t, entries, 2)
	assert.Equal(t, "Config/vts_config.json", entries[0].Name)
	assert.Equal(t, CategoryGlobalConfig, entries[0].Category)
	assert.Equal(t, CategoryModelConfigs, entries[1].Category)
	assert.Equal(t, uint64(len(`{"StringData":[]}`)), entries[0].Size)
}

func TestFlagsSelect(t *testing.T) {
	tests := []struct {
		name   string
		flags  Flags
		entry  string
		want   Category
		wantOK bool
	}{
		{"global", DefaultFlags(), "Config/vts_config.json", CategoryGlobalConfig, true},
		{"calibration", DefaultFlags(), "Config/webcam_calibration_mediapipe.json", CategoryCalibration, true},
		{"plugin auth off by default", DefaultFlags(), "Config/Plugins/x.vtsauth", "", false},
		{"plugin auth on", Flags{PluginAuth: true}, "Config/Plugins/x.vtsauth", CategoryPluginAuth, true},
		{"first enabled rule wins", Flags{ModelConfigs: true}, "Live2DModels/A/lipsync.vtube.json", CategoryModelConfigs, true},
		{"calibration precedes models", DefaultFlags(), "Live2DModels/A/lipsync.vtube.json", CategoryCalibration, true},
		{"unknown", DefaultFlags(), "readme.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.flags.Select(tt.entry)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlagsSet(t *testing.T) {
	var f Flags
	for _, c := range Categories() {
		f.Set(c, true)
		assert.True(t, f.Enabled(c), c)
	}
	assert.Equal(t, allFlags(), f)
}
