package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the XDG directories at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	// Registered first so it runs after the environment is restored.
	t.Cleanup(xdg.Reload)
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Setenv("VTSCONF_CONFIG", "")
	xdg.Reload()
	return home
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("vts-conf")
	assert.Equal(t, "vts-conf", loader.appName)
	assert.Equal(t, "VTS_CONF", loader.envPrefix)
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := NewLoader("vtsconf").Load()
	require.NoError(t, err)

	assert.Equal(t, "table", cfg.Output)
	assert.True(t, cfg.Transfer.GenerateNewIDs)
	assert.True(t, cfg.Transfer.CopyMediaFiles)
	assert.True(t, cfg.Backup.SafetyBackup)
	assert.Equal(t, 10, cfg.Backup.Keep)
	assert.False(t, cfg.Backup.IncludePluginAuth)
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.Equal(t, filepath.Join(home, "data", "vtsconf", "backups"), cfg.BackupDir)
	assert.Equal(t, filepath.Join(home, "data", "vtsconf", "profiles"), cfg.ProfilesDir)
	assert.Equal(t, filepath.Join(home, "state", "vtsconf", "history.json"), cfg.HistoryPath())
}

func TestLoad_UserConfig(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config", "vtsconf", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`
install_path: /games/VTube Studio
output: json
transfer:
  copy_media_files: false
backup:
  keep: 3
`), 0644))

	cfg, err := NewLoader("vtsconf").Load()
	require.NoError(t, err)
	assert.Equal(t, "/games/VTube Studio", cfg.InstallPath)
	assert.Equal(t, "json", cfg.Output)
	assert.False(t, cfg.Transfer.CopyMediaFiles)
	assert.True(t, cfg.Transfer.GenerateNewIDs, "unset fields keep their defaults")
	assert.Equal(t, 3, cfg.Backup.Keep)
	assert.True(t, cfg.Backup.SafetyBackup)
}

func TestLoad_CustomConfigPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: yaml\n"), 0644))
	t.Setenv("VTSCONF_CONFIG", path)

	loader := NewLoader("vtsconf")
	assert.Equal(t, path, loader.ConfigPath())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("VTSCONF_INSTALL_PATH", "/opt/vts")
	t.Setenv("VTSCONF_BACKUP_DIR", "/tmp/vts-backups")
	t.Setenv("VTSCONF_OUTPUT", "yaml")
	t.Setenv("VTSCONF_KEEP_BACKUPS", "0")
	t.Setenv("VTSCONF_SAFETY_BACKUP", "false")
	t.Setenv("VTSCONF_GENERATE_NEW_IDS", "0")
	t.Setenv("VTSCONF_APP_VERSION", "1.30.0")

	cfg, err := NewLoader("vtsconf").Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/vts", cfg.InstallPath)
	assert.Equal(t, "/tmp/vts-backups", cfg.BackupDir)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, 0, cfg.Backup.Keep)
	assert.False(t, cfg.Backup.SafetyBackup)
	assert.False(t, cfg.Transfer.GenerateNewIDs)
	assert.Equal(t, "1.30.0", cfg.AppVersion)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad number", env: map[string]string{"VTSCONF_KEEP_BACKUPS": "many"}},
		{name: "bad boolean", env: map[string]string{"VTSCONF_SAFETY_BACKUP": "maybe"}},
		{name: "unknown output", env: map[string]string{"VTSCONF_OUTPUT": "xml"}},
		{name: "negative keep", file: "backup:\n  keep: -1\n"},
		{name: "malformed file", file: "output: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
				t.Setenv("VTSCONF_CONFIG", path)
			}
			_, err := NewLoader("vtsconf").Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)

	err = NewValidator().Validate(cfg)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3, "directories are filled in by the loader")

	cfg.BackupDir, cfg.ProfilesDir, cfg.StateDir = "b", "p", "s"
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestMerge(t *testing.T) {
	cfg := &Config{InstallPath: "/a", BackupDir: "/b", Output: "table"}
	merged := cfg.Merge(Overrides{InstallPath: "/c", Output: "json"})

	assert.Equal(t, "/c", merged.InstallPath)
	assert.Equal(t, "/b", merged.BackupDir)
	assert.Equal(t, "json", merged.Output)
	assert.Equal(t, "/a", cfg.InstallPath, "receiver is not modified")
}

func TestSave(t *testing.T) {
	isolate(t)
	loader := NewLoader("vtsconf")
	cfg, err := loader.Load()
	require.NoError(t, err)
	cfg.Output = "json"

	require.NoError(t, loader.Save(cfg))
	assert.FileExists(t, loader.ConfigPath())

	again, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "json", again.Output)
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		BackupDir:   filepath.Join(root, "b"),
		ProfilesDir: filepath.Join(root, "p"),
		StateDir:    filepath.Join(root, "s"),
	}
	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, cfg.BackupDir)
	assert.DirExists(t, cfg.ProfilesDir)
	assert.DirExists(t, cfg.StateDir)
}

func TestGetSet(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)

	for _, key := range Keys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}

	require.NoError(t, cfg.Set("backup.keep", "4"))
	v, err := cfg.Get("backup.keep")
	require.NoError(t, err)
	assert.Equal(t, "4", v)

	require.NoError(t, cfg.Set("transfer.copy_media_files", "false"))
	v, _ = cfg.Get("transfer.copy_media_files")
	assert.Equal(t, "false", v)

	assert.Error(t, cfg.Set("backup.keep", "lots"))
	assert.Error(t, cfg.Set("nope", "1"))
	_, err = cfg.Get("nope")
	assert.Error(t, err)
}
