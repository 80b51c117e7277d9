package config

import (
	"fmt"
	"slices"
	"strings"
)

// OutputFormats are the accepted values of Config.Output.
var OutputFormats = []string{"table", "json", "yaml"}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validator handles configuration validation.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates a resolved configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg.BackupDir == "" {
		v.addError("backup_dir", "backup_dir is required")
	}
	if cfg.ProfilesDir == "" {
		v.addError("profiles_dir", "profiles_dir is required")
	}
	if cfg.StateDir == "" {
		v.addError("state_dir", "state_dir is required")
	}
	if !slices.Contains(OutputFormats, cfg.Output) {
		v.addError("output", fmt.Sprintf("output must be one of: %s", strings.Join(OutputFormats, ", ")))
	}
	if cfg.Backup.Keep < 0 {
		v.addError("backup.keep", "keep must not be negative")
	}
	if cfg.HistoryLimit < 0 {
		v.addError("history_limit", "history_limit must not be negative")
	}

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}
