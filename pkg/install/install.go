// Package install locates the configuration tree of a VTube Studio
// installation and enumerates the models and items inside it.
//
// Discovery is explicit: callers construct an *Installation with Discover and
// pass it to whatever needs it. Nothing here is cached process-wide.
package install

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CliForge/vtsconf/internal/fsutil"
	"github.com/CliForge/vtsconf/pkg/vtube"
	"github.com/tidwall/gjson"
)

// Directory and file names inside an installation.
const (
	DataDirName            = "VTube Studio_Data"
	StreamingAssetsDirName = "StreamingAssets"

	ConfigDirName      = "Config"
	ModelsDirName      = "Live2DModels"
	ItemsDirName       = "Items"
	EffectsDirName     = "Effects"
	BackgroundsDirName = "Backgrounds"
	PluginsDirName     = "Plugins"

	GlobalSettingsFile   = "vts_config.json"
	CustomParametersFile = "custom_parameters.json"
	EffectsFile          = "vts_saved_visual_effects.effects.json"
	PluginAuthExt        = ".vtsauth"
)

// Installation is a validated installation tree. ConfigRoot is the
// StreamingAssets folder; archive entries are stored relative to it.
type Installation struct {
	Root       string `json:"root" yaml:"root"`
	ConfigRoot string `json:"config_root" yaml:"config_root"`
}

// Discover validates path as an installation. path may be the application
// root or its StreamingAssets folder. A *vtube.NotFoundError is returned if
// the Config and Live2DModels folders cannot be found.
func Discover(path string) (*Installation, error) {
	if path == "" {
		return nil, &vtube.NotFoundError{Kind: "installation", Name: "(no path configured)"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	candidates := []struct{ root, configRoot string }{
		{abs, filepath.Join(abs, DataDirName, StreamingAssetsDirName)},
		{filepath.Dir(filepath.Dir(abs)), abs},
	}
	for _, c := range candidates {
		if fsutil.DirExists(filepath.Join(c.configRoot, ConfigDirName)) &&
			fsutil.DirExists(filepath.Join(c.configRoot, ModelsDirName)) {
			return &Installation{Root: c.root, ConfigRoot: c.configRoot}, nil
		}
	}
	return nil, &vtube.NotFoundError{Kind: "installation", Name: path}
}

// ConfigDir is the folder holding the global settings documents.
func (i *Installation) ConfigDir() string { return filepath.Join(i.ConfigRoot, ConfigDirName) }

// ModelsDir is the folder of model entity folders.
func (i *Installation) ModelsDir() string { return filepath.Join(i.ConfigRoot, ModelsDirName) }

// ItemsDir is the folder of item entity folders.
func (i *Installation) ItemsDir() string { return filepath.Join(i.ConfigRoot, ItemsDirName) }

// EffectsDir is the folder holding the saved effects document.
func (i *Installation) EffectsDir() string { return filepath.Join(i.ConfigRoot, EffectsDirName) }

// BackgroundsDir is the folder of background images.
func (i *Installation) BackgroundsDir() string {
	return filepath.Join(i.ConfigRoot, BackgroundsDirName)
}

// PluginsDir is the folder of plugin authorization tokens.
func (i *Installation) PluginsDir() string { return filepath.Join(i.ConfigDir(), PluginsDirName) }

// GlobalSettingsPath is the path of the global settings document.
func (i *Installation) GlobalSettingsPath() string {
	return filepath.Join(i.ConfigDir(), GlobalSettingsFile)
}

// CustomParametersPath is the path of the custom parameter document.
func (i *Installation) CustomParametersPath() string {
	return filepath.Join(i.ConfigDir(), CustomParametersFile)
}

// Kind distinguishes models from items.
type Kind string

const (
	KindModel Kind = "model"
	KindItem  Kind = "item"
)

// Entity summarizes one model or item folder.
type Entity struct {
	Kind            Kind   `json:"kind" yaml:"kind"`
	Name            string `json:"name" yaml:"name"`
	ID              string `json:"id" yaml:"id"`
	Folder          string `json:"folder" yaml:"folder"`
	DocumentPath    string `json:"document" yaml:"document"`
	IconPath        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	HotkeyCount     int    `json:"hotkeys" yaml:"hotkeys"`
	ParameterCount  int    `json:"parameters" yaml:"parameters"`
	ExpressionCount int    `json:"expressions" yaml:"expressions"`
	LastSaved       string `json:"last_saved,omitempty" yaml:"last_saved,omitempty"`
}

// Skipped is an entity folder that could not be listed.
type Skipped struct {
	Folder string `json:"folder" yaml:"folder"`
	Reason string `json:"reason" yaml:"reason"`
}

// Listing is the result of scanning a models or items folder.
type Listing struct {
	Entities []Entity  `json:"entities" yaml:"entities"`
	Skipped  []Skipped `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// ListModels scans the models folder.
func (i *Installation) ListModels() (*Listing, error) {
	return scan(i.ModelsDir(), KindModel)
}

// ListItems scans the items folder. A missing items folder yields an empty
// listing.
func (i *Installation) ListItems() (*Listing, error) {
	if !fsutil.DirExists(i.ItemsDir()) {
		return &Listing{}, nil
	}
	return scan(i.ItemsDir(), KindItem)
}

func scan(dir string, kind Kind) (*Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &vtube.IOError{Op: "list", Path: dir, Err: err}
	}

	listing := &Listing{}
	for _, e := range entries {
		if !e.IsDir() || skipFolder(e.Name()) {
			continue
		}
		folder := filepath.Join(dir, e.Name())
		entity, err := inspect(folder, kind)
		if err != nil {
			listing.Skipped = append(listing.Skipped, Skipped{Folder: e.Name(), Reason: err.Error()})
			continue
		}
		listing.Entities = append(listing.Entities, *entity)
	}
	sort.Slice(listing.Entities, func(a, b int) bool {
		return strings.ToLower(listing.Entities[a].Name) < strings.ToLower(listing.Entities[b].Name)
	})
	return listing, nil
}

func skipFolder(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(name, ".") || lower == "backup" || lower == "backups"
}

func inspect(folder string, kind Kind) (*Entity, error) {
	docPath, err := FindDocument(folder)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(docPath)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s is not valid JSON", filepath.Base(docPath))
	}
	root := gjson.ParseBytes(data)
	if !root.Get("Version").Exists() && !root.Get("ModelID").Exists() {
		return nil, fmt.Errorf("%s is not a configuration document", filepath.Base(docPath))
	}

	name := strings.TrimSpace(root.Get("Name").String())
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(docPath), vtube.DocumentSuffix)
	}

	entity := &Entity{
		Kind:            kind,
		Name:            name,
		ID:              root.Get("ModelID").String(),
		Folder:          folder,
		DocumentPath:    docPath,
		ExpressionCount: len(vtube.ExpressionFiles(folder)),
		LastSaved:       root.Get("ModelSaveMetadata.LastSavedDateLocalTime").String(),
	}
	if hk := root.Get("Hotkeys"); hk.IsArray() {
		entity.HotkeyCount = len(hk.Array())
	}
	if ps := root.Get("ParameterSettings"); ps.IsArray() {
		entity.ParameterCount = len(ps.Array())
	}

	icons := []string{"icon.png", "Icon.png", "thumbnail.png"}
	if icon := root.Get("FileReferences.Icon").String(); icon != "" {
		icons = append([]string{icon}, icons...)
	}
	for _, icon := range icons {
		if p := filepath.Join(folder, icon); fsutil.FileExists(p) {
			entity.IconPath = p
			break
		}
	}
	return entity, nil
}

// FindDocument returns the authoritative document in an entity folder.
// Backup and duplicate copies are ignored. Zero candidates yield a
// *vtube.NotFoundError, more than one a *vtube.ConflictError.
func FindDocument(folder string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(folder, "*"+vtube.DocumentSuffix))
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", folder, err)
	}

	var docs []string
	for _, m := range matches {
		if !vtube.IsBackupName(filepath.Base(m)) && fsutil.FileExists(m) {
			docs = append(docs, m)
		}
	}
	sort.Strings(docs)

	switch len(docs) {
	case 0:
		return "", &vtube.NotFoundError{Kind: "configuration document", Name: folder}
	case 1:
		return docs[0], nil
	default:
		names := make([]string, len(docs))
		for i, d := range docs {
			names[i] = filepath.Base(d)
		}
		return "", &vtube.ConflictError{
			Path:   folder,
			Reason: fmt.Sprintf("multiple configuration documents (%s)", strings.Join(names, ", ")),
		}
	}
}

// FindEntity resolves a model or item by folder name or display name. An
// existing directory path is also accepted.
func (i *Installation) FindEntity(name string) (*Entity, error) {
	if fsutil.DirExists(name) && strings.ContainsAny(name, `/\`) {
		kind := KindModel
		if abs, err := filepath.Abs(name); err == nil && strings.HasPrefix(abs, i.ItemsDir()) {
			kind = KindItem
		}
		return inspect(name, kind)
	}

	var found []Entity
	for _, list := range []func() (*Listing, error){i.ListModels, i.ListItems} {
		listing, err := list()
		if err != nil {
			return nil, err
		}
		for _, e := range listing.Entities {
			if filepath.Base(e.Folder) == name || e.Name == name {
				found = append(found, e)
			}
		}
	}

	switch len(found) {
	case 0:
		return nil, &vtube.NotFoundError{Kind: "entity", Name: name}
	case 1:
		return &found[0], nil
	default:
		return nil, &vtube.ConflictError{Path: name, Reason: "ambiguous entity name"}
	}
}
