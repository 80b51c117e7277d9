// Package interactive asks the user before destructive operations and fills
// in arguments that were left off the command line.
//
// Prompts use pterm. When the prompter is non-interactive (stdin is not a
// terminal, or --yes was given) every prompt resolves to its default without
// reading input.
package interactive

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Prompter handles interactive user prompts.
type Prompter struct {
	input  io.Reader
	output io.Writer
	// DisableInteractive resolves every prompt to its default.
	DisableInteractive bool
	// AssumeYes answers confirmations with yes.
	AssumeYes bool
}

// PrompterConfig configures the Prompter.
type PrompterConfig struct {
	Input              io.Reader
	Output             io.Writer
	DisableColor       bool
	DisableInteractive bool
	AssumeYes          bool
}

// NewPrompter creates a new Prompter with the given configuration.
// If config is nil, uses default configuration (stdin/stdout).
func NewPrompter(config *PrompterConfig) *Prompter {
	if config == nil {
		config = &PrompterConfig{}
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.DisableColor {
		pterm.DisableColor()
	}

	return &Prompter{
		input:              config.Input,
		output:             config.Output,
		DisableInteractive: config.DisableInteractive || config.AssumeYes,
		AssumeYes:          config.AssumeYes,
	}
}

// TextPromptOptions configures a text prompt.
type TextPromptOptions struct {
	Message  string
	Default  string
	Required bool
	// Validate rejects an answer; the prompt repeats with its message.
	Validate func(string) error
}

// Text prompts for text input with optional validation.
func (p *Prompter) Text(opts *TextPromptOptions) (string, error) {
	if opts == nil {
		return "", fmt.Errorf("options cannot be nil")
	}

	if p.DisableInteractive {
		if opts.Default == "" && opts.Required {
			return "", fmt.Errorf("%s: no value given and prompts are disabled", opts.Message)
		}
		if opts.Validate != nil && opts.Default != "" {
			if err := opts.Validate(opts.Default); err != nil {
				return "", err
			}
		}
		return opts.Default, nil
	}

	for {
		message := opts.Message
		if opts.Default != "" {
			message = fmt.Sprintf("%s (default: %s)", message, opts.Default)
		}

		result, err := pterm.DefaultInteractiveTextInput.
			WithMultiLine(false).
			Show(message)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}

		result = strings.TrimSpace(result)
		if result == "" {
			result = opts.Default
		}
		if result == "" {
			if opts.Required {
				pterm.Error.Println("This field is required")
				continue
			}
			return result, nil
		}

		if opts.Validate != nil {
			if err := opts.Validate(result); err != nil {
				pterm.Error.Println(err.Error())
				continue
			}
		}
		return result, nil
	}
}

// SelectPromptOptions configures a select prompt.
type SelectPromptOptions struct {
	Message string
	Options []string
	Default string
}

// Select prompts for selection from a list of options.
func (p *Prompter) Select(opts *SelectPromptOptions) (string, error) {
	if opts == nil {
		return "", fmt.Errorf("options cannot be nil")
	}
	if len(opts.Options) == 0 {
		return "", fmt.Errorf("options list cannot be empty")
	}

	defaultOption := opts.Options[0]
	for _, opt := range opts.Options {
		if opt == opts.Default {
			defaultOption = opt
			break
		}
	}

	if p.DisableInteractive {
		return defaultOption, nil
	}

	result, err := pterm.DefaultInteractiveSelect.
		WithOptions(opts.Options).
		WithDefaultOption(defaultOption).
		Show(opts.Message)
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	return result, nil
}

// ConfirmPromptOptions configures a confirmation prompt.
type ConfirmPromptOptions struct {
	Message string
	Default bool
}

// Confirm prompts for yes/no confirmation.
func (p *Prompter) Confirm(opts *ConfirmPromptOptions) (bool, error) {
	if opts == nil {
		return false, fmt.Errorf("options cannot be nil")
	}
	if p.AssumeYes {
		return true, nil
	}
	if p.DisableInteractive {
		return opts.Default, nil
	}

	result, err := pterm.DefaultInteractiveConfirm.
		WithDefaultValue(opts.Default).
		Show(opts.Message)
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return result, nil
}

// ErrAborted is returned by Require when the user declines.
var ErrAborted = fmt.Errorf("aborted by user")

// Require asks for confirmation and returns ErrAborted unless the user
// agrees.
func (p *Prompter) Require(message string) error {
	ok, err := p.Confirm(&ConfirmPromptOptions{Message: message})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}
