// Where: internal/infra/interaction/interaction.go
// What: Confirmation prompts and TTY detection.
// Why: Keep destructive commands behind an explicit answer from a human.
package interaction

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation requires an interactive terminal")

// Prompter asks the user for decisions.
type Prompter interface {
	Confirm(title, description string) (bool, error)
}

// IsTerminal reports whether the file refers to a terminal device.
var IsTerminal = func(file *os.File) bool {
	if file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var runConfirmPrompt = func(title, description string, confirmed *bool) error {
	return huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(confirmed).
		Run()
}

// HuhPrompter implements Prompter with the huh TUI library.
type HuhPrompter struct{}

func (HuhPrompter) Confirm(title, description string) (bool, error) {
	if !IsTerminal(os.Stdin) {
		return false, ErrNotInteractive
	}
	var confirmed bool
	if err := runConfirmPrompt(title, description, &confirmed); err != nil {
		return false, fmt.Errorf("prompt confirm: %w", err)
	}
	return confirmed, nil
}
