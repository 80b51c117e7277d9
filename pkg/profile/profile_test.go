package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/vtube"
)

const globalSettings = `{
  "StringData": [
    {"Key": "Config_LastMicName", "Value": "Studio Mic"},
    {"Key": "vts_main_language", "Value": "en"},
    {"Key": "Config_LastModel", "Value": "Alice"}
  ],
  "IntData": [
    {"Key": "Config_FPSOption", "Value": 60},
    {"Key": "Config_WebcamIndex", "Value": 0}
  ],
  "FloatData": [
    {"Key": "Config_TrackingSmoothing", "Value": 0.5}
  ],
  "BoolData": [
    {"Key": "Config_StartAPI", "Value": true},
    {"Key": "Config_UseMicrophone", "Value": false}
  ],
  "WindowLayout": {"x": 10, "y": 20}
}`

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

func newManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(filepath.Join(t.TempDir(), "profiles"), "1.28.0", nil)
	m.BackupDir = filepath.Join(t.TempDir(), "backups")
	return m
}

func keys(settings []byte, bucket string) []string {
	var out []string
	gjson.GetBytes(settings, bucket).ForEach(func(_, item gjson.Result) bool {
		out = append(out, item.Get("Key").String())
		return true
	})
	return out
}

func TestFilterByCategory(t *testing.T) {
	tests := []struct {
		category Category
		want     map[string][]string
	}{
		{CategoryTracking, map[string][]string{
			"StringData": {"Config_LastMicName"},
			"IntData":    {"Config_WebcamIndex"},
			"FloatData":  {"Config_TrackingSmoothing"},
			"BoolData":   {"Config_UseMicrophone"},
		}},
		{CategoryAPI, map[string][]string{
			"BoolData": {"Config_StartAPI"},
		}},
		{CategoryUI, map[string][]string{
			"StringData": {"vts_main_language"},
			"IntData":    {"Config_FPSOption"},
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			out, err := FilterByCategory([]byte(globalSettings), tt.category)
			require.NoError(t, err)
			for _, bucket := range Buckets {
				assert.Equal(t, tt.want[bucket], keys(out, bucket), bucket)
				assert.True(t, gjson.GetBytes(out, bucket).IsArray(), bucket)
			}
			assert.False(t, gjson.GetBytes(out, "WindowLayout").Exists())
		})
	}

	for _, c := range []Category{CategoryComplete, CategoryCustom} {
		out, err := FilterByCategory([]byte(globalSettings), c)
		require.NoError(t, err)
		assert.Equal(t, globalSettings, string(out))
	}

	_, err := FilterByCategory([]byte(`[1,2]`), CategoryUI)
	assert.Error(t, err)
}

func TestEntries(t *testing.T) {
	entries := Entries([]byte(globalSettings))
	require.Len(t, entries, 8)
	assert.Equal(t, Entry{Key: "Config_LastMicName", Type: "StringData", Value: "Studio Mic"}, entries[0])
	assert.Equal(t, Entry{Key: "Config_StartAPI", Type: "BoolData", Value: true}, entries[6])
	assert.Equal(t, 8, Count([]byte(globalSettings)))

	assert.Empty(t, Entries([]byte(`{}`)))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("Tracking")
	require.NoError(t, err)
	assert.Equal(t, CategoryTracking, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryComplete, c)

	_, err = ParseCategory("audio")
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	steppingClock(t)
	m := newManager(t)

	saved, err := m.Save("Streaming", []byte(globalSettings), CategoryUI, "evening setup", []string{"stream"})
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, saved.Version)

	data, err := os.ReadFile(filepath.Join(m.Dir, "Streaming.json"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"profile_version", "name", "created_date", "vts_version", "category", "description", "tags", "settings"} {
		assert.Contains(t, raw, field)
	}

	p, err := m.Load("Streaming")
	require.NoError(t, err)
	assert.Equal(t, "Streaming", p.Name)
	assert.Equal(t, CategoryUI, p.Category)
	assert.Equal(t, "1.28.0", p.AppVersion)
	assert.Equal(t, []string{"stream"}, p.Tags)
	assert.Equal(t, 2, Count(p.Settings))
	assert.False(t, p.CreatedAt().IsZero())

	_, err = m.Load("Missing")
	assert.True(t, vtube.IsNotFound(err))

	_, err = m.Save("bad/name", []byte(globalSettings), CategoryComplete, "", nil)
	assert.True(t, vtube.IsValidation(err))

	_, err = m.Save("Broken", []byte(`not json`), CategoryComplete, "", nil)
	assert.Error(t, err)
}

func TestSaveFromInstallation(t *testing.T) {
	m := newManager(t)
	path := filepath.Join(t.TempDir(), "vts_config.json")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, globalSettings...), 0644))

	p, err := m.SaveFromInstallation("Full", path, CategoryComplete, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 8, Count(p.Settings))

	_, err = m.SaveFromInstallation("Full", filepath.Join(t.TempDir(), "nope.json"), CategoryComplete, "", nil)
	assert.True(t, vtube.IsNotFound(err))
}

func TestListAndDelete(t *testing.T) {
	steppingClock(t)
	m := newManager(t)

	for _, name := range []string{"First", "Second", "Third"} {
		_, err := m.Save(name, []byte(globalSettings), CategoryComplete, "", nil)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir, "garbage.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir, "readme.txt"), []byte("hi"), 0644))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Third", list[0].Name)
	assert.Equal(t, "First", list[2].Name)
	assert.Equal(t, 8, list[0].Entries)

	require.NoError(t, m.Delete("Second"))
	assert.True(t, vtube.IsNotFound(m.Delete("Second")))

	list, err = m.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestList_MissingDirectory(t *testing.T) {
	list, err := NewManager(filepath.Join(t.TempDir(), "none"), "", nil).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExportImport(t *testing.T) {
	m := newManager(t)
	_, err := m.Save("Streaming", []byte(globalSettings), CategoryAPI, "", nil)
	require.NoError(t, err)

	exported := filepath.Join(t.TempDir(), "shared.json")
	require.NoError(t, m.Export("Streaming", exported))
	assert.True(t, vtube.IsNotFound(m.Export("Missing", exported)))

	other := newManager(t)
	name, err := other.Import(exported, false)
	require.NoError(t, err)
	assert.Equal(t, "Streaming", name)

	_, err = other.Import(exported, false)
	assert.True(t, vtube.IsConflict(err))
	_, err = other.Import(exported, true)
	assert.NoError(t, err)

	// Without a name field the file stem is used.
	unnamed := filepath.Join(t.TempDir(), "Desk Setup.json")
	require.NoError(t, os.WriteFile(unnamed, []byte(`{"settings": {"IntData": []}}`), 0644))
	name, err = other.Import(unnamed, false)
	require.NoError(t, err)
	assert.Equal(t, "Desk Setup", name)

	p, err := other.Load("Desk Setup")
	require.NoError(t, err)
	assert.Equal(t, CategoryComplete, p.Category)

	notObject := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, os.WriteFile(notObject, []byte(`[]`), 0644))
	_, err = other.Import(notObject, false)
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	m := newManager(t)
	_, err := m.Save("A", []byte(`{
  "IntData": [{"Key": "Config_FPSOption", "Value": 60}, {"Key": "OnlyA", "Value": 1}],
  "BoolData": [{"Key": "Config_StartAPI", "Value": true}]
}`), CategoryComplete, "", nil)
	require.NoError(t, err)
	_, err = m.Save("B", []byte(`{
  "IntData": [{"Key": "Config_FPSOption", "Value": 30}],
  "BoolData": [{"Key": "Config_StartAPI", "Value": true}],
  "StringData": [{"Key": "OnlyB", "Value": "x"}]
}`), CategoryComplete, "", nil)
	require.NoError(t, err)

	cmp, err := m.Compare("A", "B")
	require.NoError(t, err)
	assert.False(t, cmp.Equal())
	assert.Equal(t, []Entry{{Key: "OnlyA", Type: "IntData", Value: float64(1)}}, cmp.OnlyInFirst)
	assert.Equal(t, []Entry{{Key: "OnlyB", Type: "StringData", Value: "x"}}, cmp.OnlyInSecond)
	assert.Equal(t, []Change{{Key: "Config_FPSOption", Type: "IntData", Value: float64(60), Other: float64(30)}}, cmp.Different)

	same, err := m.Compare("A", "A")
	require.NoError(t, err)
	assert.True(t, same.Equal())

	_, err = m.Compare("A", "Missing")
	assert.True(t, vtube.IsNotFound(err))
}

func TestMergeSettings(t *testing.T) {
	profile := []byte(`{
  "IntData": [{"Key": "Config_FPSOption", "Value": 30}, {"Key": "Config_NewSetting", "Value": 7}],
  "BoolData": [{"Key": "Config_StartAPI", "Value": true}],
  "FloatData": []
}`)
	merged, stats, err := MergeSettings([]byte(globalSettings), profile)
	require.NoError(t, err)
	assert.Equal(t, MergeStats{Updated: 1, Added: 1, Unchanged: 1}, stats)

	assert.Equal(t, int64(30), gjson.GetBytes(merged, `IntData.#(Key=="Config_FPSOption").Value`).Int())
	assert.Equal(t, int64(7), gjson.GetBytes(merged, `IntData.#(Key=="Config_NewSetting").Value`).Int())
	assert.Equal(t, "Studio Mic", gjson.GetBytes(merged, `StringData.#(Key=="Config_LastMicName").Value`).String())
	assert.Equal(t, int64(20), gjson.GetBytes(merged, "WindowLayout.y").Int())
	assert.Len(t, gjson.GetBytes(merged, "IntData").Array(), 3)

	// A bucket missing from the target is created.
	merged, stats, err = MergeSettings([]byte(`{"Other": 1}`), profile)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Added)
	assert.Equal(t, []string{"Config_FPSOption", "Config_NewSetting"}, keys(merged, "IntData"))
	assert.Equal(t, int64(1), gjson.GetBytes(merged, "Other").Int())

	_, _, err = MergeSettings([]byte(`[]`), profile)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	m := newManager(t)
	_, err := m.Save("Low FPS", []byte(`{"IntData": [{"Key": "Config_FPSOption", "Value": 30}]}`), CategoryComplete, "", nil)
	require.NoError(t, err)

	settingsPath := filepath.Join(t.TempDir(), "vts_config.json")
	require.NoError(t, os.WriteFile(settingsPath, []byte(globalSettings), 0644))

	res := m.Apply("Low FPS", settingsPath)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, res.CanUndo)
	assert.FileExists(t, res.BackupPath)
	assert.Equal(t, m.BackupDir, filepath.Dir(res.BackupPath))

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, int64(30), gjson.GetBytes(data, `IntData.#(Key=="Config_FPSOption").Value`).Int())
	assert.Equal(t, int64(10), gjson.GetBytes(data, "WindowLayout.x").Int())

	backup, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, globalSettings, string(backup))
}

func TestApply_Failures(t *testing.T) {
	m := newManager(t)
	settingsPath := filepath.Join(t.TempDir(), "vts_config.json")

	res := m.Apply("Missing", settingsPath)
	assert.False(t, res.Success)
	assert.Empty(t, res.BackupPath)

	_, err := m.Save("P", []byte(globalSettings), CategoryComplete, "", nil)
	require.NoError(t, err)
	res = m.Apply("P", settingsPath)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "Failed to read settings")
}
