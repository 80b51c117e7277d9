package vtube

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError is returned when a document cannot be decoded as a JSON object.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports every blocking rule a document failed.
type ValidationError struct {
	Path     string
	Failures []string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "validation failed: " + strings.Join(e.Failures, "; ")
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Path, strings.Join(e.Failures, "; "))
}

// NotFoundError reports a missing file, folder, or entity.
type NotFoundError struct {
	Kind string // "file", "folder", "entity", "profile", ...
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ConflictError reports a destination that already exists or an ambiguous lookup.
type ConflictError struct {
	Path   string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("already exists: %s", e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// IOError wraps a filesystem or archive failure with the operation and path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
