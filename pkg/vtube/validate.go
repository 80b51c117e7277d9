package vtube

import "fmt"

// ValidationResult is the outcome of Validate. Errors block Save; warnings
// are advisory.
type ValidationResult struct {
	Valid    bool     `json:"valid" yaml:"valid"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// AddError records a blocking error.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// AddWarning records an advisory warning.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// HasIssues reports whether any error or warning was recorded.
func (r *ValidationResult) HasIssues() bool {
	return len(r.Errors) > 0 || len(r.Warnings) > 0
}

// Validate checks doc against the structural rules.
func Validate(doc *Document) *ValidationResult {
	result := &ValidationResult{Valid: true}

	fresh := doc.raw == nil
	if !fresh && !doc.field("Version").Exists() {
		result.AddError("Missing required field: Version")
	}
	if !fresh && !doc.field("Name").Exists() && doc.Name == "" {
		result.AddError("Missing required field: Name")
	} else if doc.Name == "" {
		result.AddError("Name must not be empty")
	}
	if !fresh && !doc.field("ModelID").Exists() && doc.ModelID == "" {
		result.AddError("Missing required field: ModelID")
	} else if !ValidateID(doc.ModelID) {
		result.AddError(fmt.Sprintf("Invalid ModelID format: %s", doc.ModelID))
	}

	if hk := doc.field("Hotkeys"); hk.Exists() && !hk.IsArray() {
		result.AddError("Hotkeys must be a list")
	} else {
		for i := range doc.Hotkeys {
			h := &doc.Hotkeys[i]
			for _, issue := range hotkeyIssues(h) {
				name := h.Name
				if name == "" {
					name = "unnamed"
				}
				result.AddWarning(fmt.Sprintf("Hotkey %d (%s): %s", i, name, issue))
			}
		}
	}

	if ps := doc.field("ParameterSettings"); ps.Exists() && !ps.IsArray() {
		result.AddError("ParameterSettings must be a list")
	}

	if fr := doc.field("FileReferences"); fr.Exists() && !fr.IsObject() {
		result.AddWarning("FileReferences should be an object")
	}

	return result
}

func hotkeyIssues(h *Hotkey) []string {
	if !h.IsObject() {
		return []string{"entry is not an object"}
	}

	var issues []string
	if !h.has("HotkeyID") {
		issues = append(issues, "Missing HotkeyID")
	} else if !ValidateID(h.ID) {
		issues = append(issues, fmt.Sprintf("Invalid HotkeyID format: %s", h.ID))
	}
	if !h.has("Name") {
		issues = append(issues, "Missing Name")
	}
	if !h.has("Action") {
		issues = append(issues, "Missing Action")
	} else if h.Action != "" && !h.Action.Known() {
		issues = append(issues, fmt.Sprintf("Unknown action: %s", h.Action))
	}
	return issues
}
