package transfer

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/CliForge/vtsconf/pkg/vtube"
)

// hotkeyEnv is the environment a hotkey filter expression is evaluated in.
type hotkeyEnv struct {
	ID       string
	Name     string
	Action   string
	File     string
	Folder   string
	Keybind  string
	IsGlobal bool
	IsActive bool
}

func envFor(h *vtube.Hotkey) hotkeyEnv {
	return hotkeyEnv{
		ID:       h.ID,
		Name:     h.Name,
		Action:   string(h.Action),
		File:     h.File,
		Folder:   h.Folder,
		Keybind:  h.KeybindString(),
		IsGlobal: h.IsGlobal,
		IsActive: h.IsActive,
	}
}

// HotkeyFilter is a compiled boolean expression over a hotkey's fields, for
// example `Action == "ToggleExpression" && IsActive`.
type HotkeyFilter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles a hotkey filter expression. An empty expression
// yields a nil filter.
func CompileFilter(condition string) (*HotkeyFilter, error) {
	if condition == "" {
		return nil, nil
	}
	program, err := expr.Compile(condition, expr.Env(hotkeyEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile hotkey filter: %w", err)
	}
	return &HotkeyFilter{source: condition, program: program}, nil
}

// Match evaluates the filter against h. A nil filter matches nothing.
func (f *HotkeyFilter) Match(h *vtube.Hotkey) (bool, error) {
	if f == nil {
		return false, nil
	}
	output, err := expr.Run(f.program, envFor(h))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate hotkey filter: %w", err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("hotkey filter did not evaluate to boolean: %v", output)
	}
	return result, nil
}

func (f *HotkeyFilter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}
