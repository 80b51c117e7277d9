// Package report provides the outcome value returned by every engine
// operation: a success flag, ordered log lines, warnings and errors.
//
// Per-item problems are accumulated here instead of being returned as Go
// errors, so one bad item never aborts a batch. Each entry is also emitted
// to an optional slog.Logger as it is recorded.
package report

import (
	"fmt"
	"log/slog"
)

// Report collects the outcome of one operation.
type Report struct {
	Success  bool     `json:"success" yaml:"success"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Log      []string `json:"log,omitempty" yaml:"log,omitempty" table:"-"`

	logger *slog.Logger
}

// New returns a successful, empty report that mirrors entries to logger.
// A nil logger discards.
func New(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Report{Success: true, logger: logger}
}

// Logf appends a formatted line to the log.
func (r *Report) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Log = append(r.Log, msg)
	r.logger.Info(msg)
}

// AddWarning records a non-fatal problem.
func (r *Report) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
	r.Log = append(r.Log, "WARNING: "+msg)
	r.logger.Warn(msg)
}

// Warnf records a formatted non-fatal problem.
func (r *Report) Warnf(format string, args ...any) {
	r.AddWarning(fmt.Sprintf(format, args...))
}

// AddError records a failure and clears Success.
func (r *Report) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Log = append(r.Log, "ERROR: "+msg)
	r.Success = false
	r.logger.Error(msg)
}

// Errorf records a formatted failure and clears Success.
func (r *Report) Errorf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}

// Fail records err as a failure. A nil err is ignored.
func (r *Report) Fail(err error) {
	if err != nil {
		r.AddError(err.Error())
	}
}

// Merge appends other's entries to r. Success is cleared if other failed.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Log = append(r.Log, other.Log...)
	if !other.Success {
		r.Success = false
	}
}

// Logger returns the logger entries are mirrored to.
func (r *Report) Logger() *slog.Logger {
	return r.logger
}

// Summary is a one-line description of the outcome.
func (r *Report) Summary() string {
	status := "succeeded"
	if !r.Success {
		status = "failed"
	}
	return fmt.Sprintf("%s with %d warning(s), %d error(s)", status, len(r.Warnings), len(r.Errors))
}
