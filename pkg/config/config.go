// Package config handles loading, merging, and validation of the tool's own
// preferences.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds the resolved preferences.
type Config struct {
	// InstallPath is the application root or its StreamingAssets folder.
	InstallPath string `yaml:"install_path,omitempty" json:"install_path,omitempty"`
	BackupDir   string `yaml:"backup_dir,omitempty" json:"backup_dir"`
	ProfilesDir string `yaml:"profiles_dir,omitempty" json:"profiles_dir"`
	StateDir    string `yaml:"state_dir,omitempty" json:"state_dir"`
	Output      string `yaml:"output,omitempty" json:"output"`
	// AppVersion is recorded in archive manifests and profiles.
	AppVersion   string           `yaml:"app_version,omitempty" json:"app_version,omitempty"`
	Transfer     TransferDefaults `yaml:"transfer" json:"transfer"`
	Backup       BackupDefaults   `yaml:"backup" json:"backup"`
	HistoryLimit int              `yaml:"history_limit" json:"history_limit"`
}

// TransferDefaults are the transfer options used when no flag is given.
type TransferDefaults struct {
	GenerateNewIDs bool `yaml:"generate_new_ids" json:"generate_new_ids"`
	CopyMediaFiles bool `yaml:"copy_media_files" json:"copy_media_files"`
}

// BackupDefaults are the backup options used when no flag is given.
type BackupDefaults struct {
	SafetyBackup       bool `yaml:"safety_backup" json:"safety_backup"`
	Keep               int  `yaml:"keep" json:"keep"`
	IncludePluginAuth  bool `yaml:"include_plugin_auth" json:"include_plugin_auth"`
	IncludeBackgrounds bool `yaml:"include_backgrounds" json:"include_backgrounds"`
}

// HistoryPath is the operation journal file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "history.json")
}

// Loader resolves configuration from the embedded defaults, the user config
// file and the environment.
type Loader struct {
	appName   string
	envPrefix string
}

// NewLoader creates a loader for appName. Environment variables use the
// upper-cased name as prefix.
func NewLoader(appName string) *Loader {
	return &Loader{
		appName:   appName,
		envPrefix: strings.ToUpper(strings.ReplaceAll(appName, "-", "_")),
	}
}

// Load resolves the configuration.
// Priority: ENV > User Config > Embedded defaults.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	path := l.ConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Fields absent from the file keep their defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse user config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}

	if err := l.applyEnvironmentOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	l.fillDirs(cfg)

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the embedded default configuration.
func Defaults() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	return &cfg, nil
}

// ConfigPath returns the user config file path: $<PREFIX>_CONFIG if set,
// otherwise config.yaml in the XDG config directory.
func (l *Loader) ConfigPath() string {
	if custom := os.Getenv(l.envPrefix + "_CONFIG"); custom != "" {
		return custom
	}
	return filepath.Join(xdg.ConfigHome, l.appName, "config.yaml")
}

// DataDir returns the XDG-compliant data directory.
func (l *Loader) DataDir() string {
	return filepath.Join(xdg.DataHome, l.appName)
}

// StateDir returns the XDG-compliant state directory.
func (l *Loader) StateDir() string {
	return filepath.Join(xdg.StateHome, l.appName)
}

func (l *Loader) fillDirs(cfg *Config) {
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(l.DataDir(), "backups")
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = filepath.Join(l.DataDir(), "profiles")
	}
	if cfg.StateDir == "" {
		cfg.StateDir = l.StateDir()
	}
}

// envKeys maps config keys to environment variable suffixes.
var envKeys = map[string]string{
	"install_path":              "INSTALL_PATH",
	"backup_dir":                "BACKUP_DIR",
	"profiles_dir":              "PROFILES_DIR",
	"state_dir":                 "STATE_DIR",
	"output":                    "OUTPUT",
	"app_version":               "APP_VERSION",
	"backup.keep":               "KEEP_BACKUPS",
	"backup.safety_backup":      "SAFETY_BACKUP",
	"transfer.generate_new_ids": "GENERATE_NEW_IDS",
	"transfer.copy_media_files": "COPY_MEDIA_FILES",
	"history_limit":             "HISTORY_LIMIT",
}

// applyEnvironmentOverrides applies environment variable overrides.
func (l *Loader) applyEnvironmentOverrides(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	for key, suffix := range envKeys {
		if err := v.BindEnv(key, l.envPrefix+"_"+suffix); err != nil {
			return err
		}
	}

	for key := range envKeys {
		if !v.IsSet(key) {
			continue
		}
		if err := setValue(cfg, key, v.GetString(key)); err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, envKeys[key], err)
		}
	}
	return nil
}

// setValue sets a value in the config using a dot-notation key.
func setValue(cfg *Config, key, value string) error {
	switch key {
	case "install_path":
		cfg.InstallPath = value
	case "backup_dir":
		cfg.BackupDir = value
	case "profiles_dir":
		cfg.ProfilesDir = value
	case "state_dir":
		cfg.StateDir = value
	case "output":
		cfg.Output = value
	case "app_version":
		cfg.AppVersion = value
	case "backup.keep", "history_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number %q", value)
		}
		if key == "backup.keep" {
			cfg.Backup.Keep = n
		} else {
			cfg.HistoryLimit = n
		}
	case "backup.safety_backup", "transfer.generate_new_ids", "transfer.copy_media_files":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		switch key {
		case "backup.safety_backup":
			cfg.Backup.SafetyBackup = b
		case "transfer.generate_new_ids":
			cfg.Transfer.GenerateNewIDs = b
		default:
			cfg.Transfer.CopyMediaFiles = b
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// EnsureDirs creates the backup, profiles and state directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.BackupDir, c.ProfilesDir, c.StateDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes cfg to the user config file.
func (l *Loader) Save(cfg *Config) error {
	path := l.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Keys returns the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(envKeys))
	for k := range envKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to the dot-notation key.
func (c *Config) Set(key, value string) error {
	return setValue(c, key, value)
}

// Get returns the value of the dot-notation key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "install_path":
		return c.InstallPath, nil
	case "backup_dir":
		return c.BackupDir, nil
	case "profiles_dir":
		return c.ProfilesDir, nil
	case "state_dir":
		return c.StateDir, nil
	case "output":
		return c.Output, nil
	case "app_version":
		return c.AppVersion, nil
	case "backup.keep":
		return strconv.Itoa(c.Backup.Keep), nil
	case "history_limit":
		return strconv.Itoa(c.HistoryLimit), nil
	case "backup.safety_backup":
		return strconv.FormatBool(c.Backup.SafetyBackup), nil
	case "transfer.generate_new_ids":
		return strconv.FormatBool(c.Transfer.GenerateNewIDs), nil
	case "transfer.copy_media_files":
		return strconv.FormatBool(c.Transfer.CopyMediaFiles), nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}
