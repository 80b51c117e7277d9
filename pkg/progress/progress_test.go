package progress

import (
	"bytes"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		want   string
	}{
		{"disabled", &Config{Type: TypeSpinner}, "noop"},
		{"none", &Config{Type: TypeNone, Enabled: true}, "noop"},
		{"bar", &Config{Type: TypeBar, Enabled: true}, "bar"},
		{"spinner", &Config{Type: TypeSpinner, Enabled: true}, "spinner"},
		{"default", nil, "spinner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			switch New(tt.config, 3).(type) {
			case *NoopProgress:
				got = "noop"
			case *Bar:
				got = "bar"
			case *Spinner:
				got = "spinner"
			}
			if got != tt.want {
				t.Errorf("New() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBarFunc(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&Config{Type: TypeBar, Enabled: true, Writer: &buf}, 0)

	fn := bar.Func()
	fn(1, 3, "Config/vts_config.json")
	if !bar.IsActive() {
		t.Fatal("Expected bar to start on first callback")
	}
	fn(2, 3, "Live2DModels/Alice/Alice.vtube.json")
	fn(3, 3, "manifest.json")

	if bar.Done() != 3 {
		t.Errorf("Expected 3 done, got %d", bar.Done())
	}
	if err := bar.Success(""); err != nil {
		t.Fatalf("Success failed: %v", err)
	}
	if bar.IsActive() {
		t.Error("Expected bar to be inactive after Success")
	}
	if buf.Len() == 0 {
		t.Error("Expected bar to write to the configured writer")
	}
}

func TestBarDisabled(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&Config{Type: TypeBar, Writer: &buf}, 2)

	if err := bar.Start("archiving"); err != nil {
		t.Fatal(err)
	}
	bar.Func()(1, 2, "a")
	if bar.IsActive() {
		t.Error("Disabled bar should never be active")
	}
	if bar.Done() != 1 {
		t.Errorf("Expected progress to be tracked, got %d", bar.Done())
	}
	if err := bar.Failure("failed"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestBarStartTwice(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&Config{Type: TypeBar, Enabled: true, Writer: &buf}, 2)
	if err := bar.Start("one"); err != nil {
		t.Fatal(err)
	}
	if err := bar.Start("two"); err == nil {
		t.Error("Expected error starting an active bar")
	}
	if err := bar.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestSpinnerDisabled(t *testing.T) {
	s := NewSpinner(&Config{Type: TypeSpinner})
	if err := s.Start("working"); err != nil {
		t.Fatal(err)
	}
	if s.IsActive() {
		t.Error("Disabled spinner should not be active")
	}
	if err := s.Update("still working"); err != nil {
		t.Fatal(err)
	}
	if err := s.Success("done"); err != nil {
		t.Fatal(err)
	}
}

func TestNoopProgress(t *testing.T) {
	n := NewNoopProgress()
	for _, err := range []error{n.Start("a"), n.Update("b"), n.Success("c"), n.Failure("d"), n.Stop()} {
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	}
	if n.IsActive() {
		t.Error("Noop progress is never active")
	}
}
