package profile

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Buckets are the typed arrays of a global settings document. Each holds
// {"Key": ..., "Value": ...} entries.
var Buckets = []string{"StringData", "IntData", "FloatData", "BoolData"}

// Category selects a subset of global settings.
type Category string

const (
	CategoryComplete Category = "complete"
	CategoryTracking Category = "tracking"
	CategoryAPI      Category = "api"
	CategoryUI       Category = "ui"
	CategoryCustom   Category = "custom"
)

// Categories lists every category.
func Categories() []Category {
	return []Category{CategoryComplete, CategoryTracking, CategoryAPI, CategoryUI, CategoryCustom}
}

// ParseCategory parses a category name case-insensitively. An empty name is
// CategoryComplete.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryComplete, nil
	}
	c := Category(strings.ToLower(s))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown profile category %q", s)
}

// keyPatterns are matched as substrings of setting keys.
var keyPatterns = map[Category][]string{
	CategoryTracking: {
		"Config_Webcam",
		"Config_Tracking",
		"Config_LipsyncType",
		"Config_UseMicrophone",
		"Config_LastMicName",
	},
	CategoryAPI: {
		"Config_API",
		"Config_StartAPI",
		"Config_Live2DAPI",
	},
	CategoryUI: {
		"Config_FPSOption",
		"vts_main_language",
		"Config_LastBackground",
		"Config_ShowOnScreen",
	},
}

// Matches reports whether a setting key belongs to c. Categories without key
// patterns match every key.
func (c Category) Matches(key string) bool {
	patterns, ok := keyPatterns[c]
	if !ok {
		return true
	}
	for _, p := range patterns {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

func isObject(data []byte) bool {
	return gjson.ValidBytes(data) && gjson.ParseBytes(data).IsObject()
}

// FilterByCategory returns the typed entries of settings whose keys belong
// to c, as a document holding only the four buckets. Complete and custom
// return settings unchanged.
func FilterByCategory(settings []byte, c Category) ([]byte, error) {
	if !isObject(settings) {
		return nil, fmt.Errorf("settings are not a JSON object")
	}
	if _, ok := keyPatterns[c]; !ok {
		return settings, nil
	}

	out := []byte(`{}`)
	for _, bucket := range Buckets {
		var kept []string
		gjson.GetBytes(settings, bucket).ForEach(func(_, item gjson.Result) bool {
			if c.Matches(item.Get("Key").String()) {
				kept = append(kept, item.Raw)
			}
			return true
		})
		var err error
		out, err = sjson.SetRawBytes(out, bucket, []byte("["+strings.Join(kept, ",")+"]"))
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", bucket, err)
		}
	}
	return out, nil
}

// Count returns the number of typed entries in settings.
func Count(settings []byte) int {
	n := 0
	for _, bucket := range Buckets {
		n += len(gjson.GetBytes(settings, bucket).Array())
	}
	return n
}

// Entry is one typed setting.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value" yaml:"value"`
}

// Entries lists the typed entries of settings, bucket by bucket.
func Entries(settings []byte) []Entry {
	var out []Entry
	for _, bucket := range Buckets {
		for _, item := range gjson.GetBytes(settings, bucket).Array() {
			out = append(out, Entry{Key: item.Get("Key").String(), Type: bucket, Value: item.Get("Value").Value()})
		}
	}
	return out
}

// Change is a key present in both settings with different values.
type Change struct {
	Key   string `json:"key" yaml:"key"`
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value" yaml:"value"`
	Other any    `json:"other_value" yaml:"other_value"`
}

// Comparison lists how two settings documents differ.
type Comparison struct {
	OnlyInFirst  []Entry  `json:"only_in_first" yaml:"only_in_first"`
	OnlyInSecond []Entry  `json:"only_in_second" yaml:"only_in_second"`
	Different    []Change `json:"different_values" yaml:"different_values"`
}

// Equal reports whether no differences were found.
func (c *Comparison) Equal() bool {
	return len(c.OnlyInFirst) == 0 && len(c.OnlyInSecond) == 0 && len(c.Different) == 0
}

// CompareSettings compares the typed entries of a and b bucket by bucket, in
// document order.
func CompareSettings(a, b []byte) *Comparison {
	cmp := &Comparison{}
	for _, bucket := range Buckets {
		first := gjson.GetBytes(a, bucket).Array()
		second := indexByKey(gjson.GetBytes(b, bucket).Array())
		seen := make(map[string]bool, len(first))

		for _, item := range first {
			key := item.Get("Key").String()
			seen[key] = true
			value := item.Get("Value").Value()
			other, ok := second[key]
			switch {
			case !ok:
				cmp.OnlyInFirst = append(cmp.OnlyInFirst, Entry{Key: key, Type: bucket, Value: value})
			case !reflect.DeepEqual(value, other.Get("Value").Value()):
				cmp.Different = append(cmp.Different, Change{Key: key, Type: bucket, Value: value, Other: other.Get("Value").Value()})
			}
		}
		for _, item := range gjson.GetBytes(b, bucket).Array() {
			key := item.Get("Key").String()
			if !seen[key] {
				cmp.OnlyInSecond = append(cmp.OnlyInSecond, Entry{Key: key, Type: bucket, Value: item.Get("Value").Value()})
			}
		}
	}
	return cmp
}

func indexByKey(items []gjson.Result) map[string]gjson.Result {
	out := make(map[string]gjson.Result, len(items))
	for _, item := range items {
		out[item.Get("Key").String()] = item
	}
	return out
}

// MergeStats counts what MergeSettings changed.
type MergeStats struct {
	Updated   int `json:"updated" yaml:"updated"`
	Added     int `json:"added" yaml:"added"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
}

// MergeSettings writes the typed entries of profile into target by Key: an
// existing entry gets the profile's value, a missing one is appended to its
// bucket. Everything else in target is kept as it is.
func MergeSettings(target, profile []byte) ([]byte, MergeStats, error) {
	var stats MergeStats
	if !isObject(target) {
		return nil, stats, fmt.Errorf("target settings are not a JSON object")
	}
	if !isObject(profile) {
		return nil, stats, fmt.Errorf("profile settings are not a JSON object")
	}

	out := bytes.Clone(target)
	for _, bucket := range Buckets {
		existing := gjson.GetBytes(out, bucket).Array()
		index := make(map[string]int, len(existing))
		for i, item := range existing {
			index[item.Get("Key").String()] = i
		}
		size := len(existing)

		var err error
		gjson.GetBytes(profile, bucket).ForEach(func(_, item gjson.Result) bool {
			key := item.Get("Key").String()
			value := item.Get("Value")
			i, ok := index[key]
			if !ok {
				if size == 0 {
					out, err = sjson.SetRawBytes(out, bucket, []byte("["+item.Raw+"]"))
				} else {
					out, err = sjson.SetRawBytes(out, bucket+".-1", []byte(item.Raw))
				}
				index[key] = size
				size++
				stats.Added++
				return err == nil
			}
			if !value.Exists() || (i < len(existing) && existing[i].Get("Value").Raw == value.Raw) {
				stats.Unchanged++
				return true
			}
			out, err = sjson.SetRawBytes(out, bucket+"."+strconv.Itoa(i)+".Value", []byte(value.Raw))
			stats.Updated++
			return err == nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("failed to merge %s: %w", bucket, err)
		}
	}
	return out, stats, nil
}
