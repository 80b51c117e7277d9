package archive

import "strings"

// Flags selects the categories of an installation tree an archive carries,
// or that a restore writes back.
type Flags struct {
	GlobalConfig     bool `json:"include_global_config" yaml:"include_global_config"`
	ModelConfigs     bool `json:"include_model_configs" yaml:"include_model_configs"`
	ItemConfigs      bool `json:"include_item_configs" yaml:"include_item_configs"`
	CustomParameters bool `json:"include_custom_parameters" yaml:"include_custom_parameters"`
	Calibration      bool `json:"include_calibration" yaml:"include_calibration"`
	PluginAuth       bool `json:"include_plugin_auth" yaml:"include_plugin_auth"`
	VisualEffects    bool `json:"include_visual_effects" yaml:"include_visual_effects"`
	Backgrounds      bool `json:"include_backgrounds" yaml:"include_backgrounds"`
}

// DefaultFlags includes everything except plugin authorization tokens and
// background images.
func DefaultFlags() Flags {
	return Flags{
		GlobalConfig:     true,
		ModelConfigs:     true,
		ItemConfigs:      true,
		CustomParameters: true,
		Calibration:      true,
		VisualEffects:    true,
	}
}

// Category is one class of file in an installation tree.
type Category string

const (
	CategoryGlobalConfig     Category = "global_config"
	CategoryCustomParameters Category = "custom_parameters"
	CategoryCalibration      Category = "calibration"
	CategoryVisualEffects    Category = "visual_effects"
	CategoryModelConfigs     Category = "model_configs"
	CategoryItemConfigs      Category = "item_configs"
	CategoryPluginAuth       Category = "plugin_auth"
	CategoryBackgrounds      Category = "backgrounds"
)

// Categories lists every category in rule order.
func Categories() []Category {
	out := make([]Category, len(rules))
	for i, r := range rules {
		out[i] = r.category
	}
	return out
}

// Enabled reports whether c is switched on in f.
func (f Flags) Enabled(c Category) bool {
	switch c {
	case CategoryGlobalConfig:
		return f.GlobalConfig
	case CategoryCustomParameters:
		return f.CustomParameters
	case CategoryCalibration:
		return f.Calibration
	case CategoryVisualEffects:
		return f.VisualEffects
	case CategoryModelConfigs:
		return f.ModelConfigs
	case CategoryItemConfigs:
		return f.ItemConfigs
	case CategoryPluginAuth:
		return f.PluginAuth
	case CategoryBackgrounds:
		return f.Backgrounds
	}
	return false
}

// Set switches c on or off.
func (f *Flags) Set(c Category, on bool) {
	switch c {
	case CategoryGlobalConfig:
		f.GlobalConfig = on
	case CategoryCustomParameters:
		f.CustomParameters = on
	case CategoryCalibration:
		f.Calibration = on
	case CategoryVisualEffects:
		f.VisualEffects = on
	case CategoryModelConfigs:
		f.ModelConfigs = on
	case CategoryItemConfigs:
		f.ItemConfigs = on
	case CategoryPluginAuth:
		f.PluginAuth = on
	case CategoryBackgrounds:
		f.Backgrounds = on
	}
}

type rule struct {
	category Category
	match    func(name string) bool
}

// rules are evaluated in order.
var rules = []rule{
	{CategoryGlobalConfig, func(n string) bool { return strings.Contains(n, "Config/vts_config.json") }},
	{CategoryCustomParameters, func(n string) bool { return strings.Contains(n, "Config/custom_parameters.json") }},
	{CategoryCalibration, func(n string) bool {
		lower := strings.ToLower(n)
		return strings.Contains(lower, "calibration") || strings.Contains(lower, "lipsync")
	}},
	{CategoryVisualEffects, func(n string) bool { return strings.Contains(n, "Effects/") }},
	{CategoryModelConfigs, func(n string) bool { return strings.Contains(n, "Live2DModels/") }},
	{CategoryItemConfigs, func(n string) bool { return strings.Contains(n, "Items/") }},
	{CategoryPluginAuth, func(n string) bool { return strings.Contains(n, ".vtsauth") }},
	{CategoryBackgrounds, func(n string) bool { return strings.Contains(n, "Backgrounds/") }},
}

// Select returns the category under which a restore with flags f writes
// the archive entry name. The first rule that is enabled and matches wins.
// ok is false if no enabled rule matches.
func (f Flags) Select(name string) (c Category, ok bool) {
	for _, r := range rules {
		if f.Enabled(r.category) && r.match(name) {
			return r.category, true
		}
	}
	return "", false
}

// Classify returns the first category whose rule matches name, regardless
// of any flags.
func Classify(name string) (Category, bool) {
	for _, r := range rules {
		if r.match(name) {
			return r.category, true
		}
	}
	return "", false
}
