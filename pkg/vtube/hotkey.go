package vtube

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Action is the effect a hotkey triggers.
type Action string

// Known hotkey actions. Any other value is preserved but flagged by Validate.
const (
	ActionToggleExpression     Action = "ToggleExpression"
	ActionTriggerAnimation     Action = "TriggerAnimation"
	ActionChangeIdleAnimation  Action = "ChangeIdleAnimation"
	ActionRemoveAllExpressions Action = "RemoveAllExpressions"
)

// Known reports whether a is one of the recognized actions.
func (a Action) Known() bool {
	switch a {
	case ActionToggleExpression, ActionTriggerAnimation, ActionChangeIdleAnimation, ActionRemoveAllExpressions:
		return true
	}
	return false
}

// Triggers holds up to three key names and an optional screen button index.
// ScreenButton is -1 when unset.
type Triggers struct {
	Trigger1     string
	Trigger2     string
	Trigger3     string
	ScreenButton int
}

// Hotkey is one entry of a document's Hotkeys sequence.
//
// Only the modeled fields are decoded. The entry's original JSON is kept and
// re-emitted on encode with changed fields patched in place, so keys the
// model does not know about survive a load/save cycle untouched.
type Hotkey struct {
	ID       string
	Name     string
	Action   Action
	File     string
	Folder   string
	IsGlobal bool
	IsActive bool
	Triggers Triggers

	raw  json.RawMessage
	base *Hotkey
}

func decodeHotkey(raw json.RawMessage) Hotkey {
	r := gjson.ParseBytes(raw)
	h := Hotkey{
		ID:       r.Get("HotkeyID").String(),
		Name:     r.Get("Name").String(),
		Action:   Action(r.Get("Action").String()),
		File:     r.Get("File").String(),
		Folder:   r.Get("Folder").String(),
		IsGlobal: r.Get("IsGlobal").Bool(),
		IsActive: true,
		Triggers: Triggers{
			Trigger1:     r.Get("Triggers.Trigger1").String(),
			Trigger2:     r.Get("Triggers.Trigger2").String(),
			Trigger3:     r.Get("Triggers.Trigger3").String(),
			ScreenButton: -1,
		},
	}
	if v := r.Get("IsActive"); v.Exists() {
		h.IsActive = v.Bool()
	}
	if v := r.Get("Triggers.ScreenButton"); v.Exists() {
		h.Triggers.ScreenButton = int(v.Int())
	}

	base := h
	h.raw = append(json.RawMessage(nil), raw...)
	h.base = &base
	return h
}

// IsObject reports whether the entry was a JSON object on disk. Entries built
// in code are always objects.
func (h *Hotkey) IsObject() bool {
	if h.raw == nil {
		return true
	}
	return gjson.ParseBytes(h.raw).IsObject()
}

// has reports whether key was present in the stored entry. Hotkeys built in
// code report presence for any non-empty value.
func (h *Hotkey) has(key string) bool {
	if h.base == nil {
		switch key {
		case "HotkeyID":
			return h.ID != ""
		case "Name":
			return h.Name != ""
		case "Action":
			return h.Action != ""
		}
		return false
	}
	return gjson.GetBytes(h.raw, key).Exists()
}

// Clone returns a deep copy of the hotkey, including its pass-through data.
func (h Hotkey) Clone() Hotkey {
	c := h
	c.raw = append(json.RawMessage(nil), h.raw...)
	return c
}

// KeybindString renders the trigger binding for display.
func (h *Hotkey) KeybindString() string {
	var parts []string
	for _, k := range []string{h.Triggers.Trigger1, h.Triggers.Trigger2, h.Triggers.Trigger3} {
		if k != "" {
			parts = append(parts, k)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " + ")
	}
	if h.Triggers.ScreenButton >= 0 {
		return fmt.Sprintf("Screen Button %d", h.Triggers.ScreenButton)
	}
	return "No keybind"
}

// MarshalJSON emits the stored entry with every modified field patched.
func (h Hotkey) MarshalJSON() ([]byte, error) {
	if h.raw != nil && !gjson.ParseBytes(h.raw).IsObject() {
		return append([]byte(nil), h.raw...), nil
	}

	out := []byte("{}")
	if h.raw != nil {
		out = append([]byte(nil), h.raw...)
	}
	fresh := h.base == nil
	b := h.base
	if fresh {
		b = &Hotkey{Triggers: Triggers{ScreenButton: -1}}
	}

	patches := []struct {
		path    string
		changed bool
		value   interface{}
	}{
		{"HotkeyID", h.ID != b.ID, h.ID},
		{"Name", h.Name != b.Name, h.Name},
		{"Action", h.Action != b.Action, string(h.Action)},
		{"File", h.File != b.File, h.File},
		{"Folder", h.Folder != b.Folder, h.Folder},
		{"IsGlobal", h.IsGlobal != b.IsGlobal, h.IsGlobal},
		{"IsActive", h.IsActive != b.IsActive, h.IsActive},
		{"Triggers.Trigger1", h.Triggers.Trigger1 != b.Triggers.Trigger1, h.Triggers.Trigger1},
		{"Triggers.Trigger2", h.Triggers.Trigger2 != b.Triggers.Trigger2, h.Triggers.Trigger2},
		{"Triggers.Trigger3", h.Triggers.Trigger3 != b.Triggers.Trigger3, h.Triggers.Trigger3},
		{"Triggers.ScreenButton", h.Triggers.ScreenButton != b.Triggers.ScreenButton, h.Triggers.ScreenButton},
	}

	var err error
	for _, p := range patches {
		if !fresh && !p.changed {
			continue
		}
		out, err = sjson.SetBytes(out, p.path, p.value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode hotkey field %s: %w", p.path, err)
		}
	}
	return out, nil
}
