// Package progress shows spinners and bars for long-running commands.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
	"github.com/schollz/progressbar/v3"
)

// Type defines the type of progress indicator.
type Type string

const (
	// TypeSpinner shows a spinner for single operations.
	TypeSpinner Type = "spinner"
	// TypeBar shows a progress bar for known step counts.
	TypeBar Type = "bar"
	// TypeNone disables progress indicators.
	TypeNone Type = "none"
)

// Progress is the interface for all progress indicators.
type Progress interface {
	// Start starts the progress indicator with a message.
	Start(message string) error

	// Update updates the progress message.
	Update(message string) error

	// Success marks the progress as successful.
	Success(message string) error

	// Failure marks the progress as failed.
	Failure(message string) error

	// Stop stops the progress indicator.
	Stop() error

	// IsActive returns true if the progress indicator is active.
	IsActive() bool
}

// Config contains progress display configuration.
type Config struct {
	Type Type

	// Enabled determines if progress indicators are shown.
	Enabled bool

	// Writer is where to write progress output. Defaults to stderr.
	Writer io.Writer
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Type:    TypeSpinner,
		Enabled: true,
		Writer:  os.Stderr,
	}
}

func (c *Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stderr
	}
	return c.Writer
}

// Spinner implements a spinner progress indicator.
type Spinner struct {
	spinner *pterm.SpinnerPrinter
	config  *Config
	active  bool
	mu      sync.Mutex
}

// NewSpinner creates a new spinner progress indicator.
func NewSpinner(config *Config) *Spinner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Spinner{config: config}
}

// Start starts the spinner with a message.
func (s *Spinner) Start(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		return nil
	}
	if s.active {
		return fmt.Errorf("spinner already active")
	}

	var err error
	s.spinner, err = pterm.DefaultSpinner.WithWriter(s.config.writer()).Start(message)
	if err != nil {
		return fmt.Errorf("failed to start spinner: %w", err)
	}
	s.active = true
	return nil
}

// Update updates the spinner message.
func (s *Spinner) Update(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.spinner == nil {
		return nil
	}
	s.spinner.UpdateText(message)
	return nil
}

// Success marks the spinner as successful.
func (s *Spinner) Success(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.spinner == nil {
		return nil
	}
	s.spinner.Success(message)
	s.active = false
	return nil
}

// Failure marks the spinner as failed.
func (s *Spinner) Failure(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.spinner == nil {
		return nil
	}
	s.spinner.Fail(message)
	s.active = false
	return nil
}

// Stop stops the spinner.
func (s *Spinner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.spinner == nil {
		return nil
	}
	err := s.spinner.Stop()
	s.active = false
	return err
}

// IsActive returns true if the spinner is active.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Bar is a progress bar over a known number of items, such as the members
// of an archive.
type Bar struct {
	bar    *progressbar.ProgressBar
	config *Config
	total  int
	done   int
	active bool
	mu     sync.Mutex
}

// NewBar creates a progress bar. A total of zero or less is taken from the
// first Set call.
func NewBar(config *Config, total int) *Bar {
	if config == nil {
		config = DefaultConfig()
	}
	return &Bar{config: config, total: total}
}

// Start starts the progress bar.
func (b *Bar) Start(message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.config.Enabled {
		return nil
	}
	if b.active {
		return fmt.Errorf("progress bar already active")
	}
	b.start(message)
	return nil
}

func (b *Bar) start(message string) {
	b.bar = progressbar.NewOptions(b.total,
		progressbar.OptionSetWriter(b.config.writer()),
		progressbar.OptionSetDescription(message),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	b.active = true
}

// Update updates the bar description.
func (b *Bar) Update(message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active || b.bar == nil {
		return nil
	}
	b.bar.Describe(message)
	return nil
}

// Set moves the bar to done of total items.
func (b *Bar) Set(done, total int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done = done
	if total > 0 && total != b.total {
		b.total = total
		if b.bar != nil {
			b.bar.ChangeMax(total)
		}
	}
	if !b.active || b.bar == nil {
		return nil
	}
	return b.bar.Set(done)
}

// Func adapts the bar to the archive codec's per-member callback. The bar
// starts on the first call.
func (b *Bar) Func() func(done, total int, name string) {
	return func(done, total int, name string) {
		b.mu.Lock()
		if b.config.Enabled && !b.active {
			if total > 0 {
				b.total = total
			}
			b.start(name)
		}
		b.mu.Unlock()
		_ = b.Update(name)
		_ = b.Set(done, total)
	}
}

// Done returns the number of items completed so far.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Success marks the progress bar as complete.
func (b *Bar) Success(message string) error {
	if err := b.finish(); err != nil {
		return err
	}
	if message != "" && b.config.Enabled {
		pterm.Success.WithWriter(b.config.writer()).Println(message)
	}
	return nil
}

// Failure marks the progress bar as failed.
func (b *Bar) Failure(message string) error {
	b.mu.Lock()
	if b.active && b.bar != nil {
		_ = b.bar.Exit()
	}
	b.active = false
	b.mu.Unlock()

	if message != "" && b.config.Enabled {
		pterm.Error.WithWriter(b.config.writer()).Println(message)
	}
	return nil
}

func (b *Bar) finish() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active || b.bar == nil {
		return nil
	}
	b.active = false
	return b.bar.Finish()
}

// Stop stops the progress bar.
func (b *Bar) Stop() error {
	return b.finish()
}

// IsActive returns true if the progress bar is active.
func (b *Bar) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// NoopProgress is a no-op progress indicator.
type NoopProgress struct{}

// NewNoopProgress creates a new no-op progress indicator.
func NewNoopProgress() *NoopProgress {
	return &NoopProgress{}
}

// Start does nothing.
func (n *NoopProgress) Start(message string) error { return nil }

// Update does nothing.
func (n *NoopProgress) Update(message string) error { return nil }

// Success does nothing.
func (n *NoopProgress) Success(message string) error { return nil }

// Failure does nothing.
func (n *NoopProgress) Failure(message string) error { return nil }

// Stop does nothing.
func (n *NoopProgress) Stop() error { return nil }

// IsActive always returns false.
func (n *NoopProgress) IsActive() bool { return false }

// New creates a progress indicator of the configured type.
func New(config *Config, total int) Progress {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled || config.Type == TypeNone {
		return NewNoopProgress()
	}
	if config.Type == TypeBar {
		return NewBar(config, total)
	}
	return NewSpinner(config)
}
