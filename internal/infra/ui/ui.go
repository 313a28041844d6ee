// Where: internal/infra/ui/ui.go
// What: High-level output surface for use cases.
// Why: Keep orchestration code free of formatting details.
package ui

import "io"

// KeyValue is a key/value pair rendered inside a block.
type KeyValue struct {
	Key   string
	Value any
}

// UserInterface exposes the output helpers used by use cases.
type UserInterface interface {
	Info(msg string)
	Warn(msg string)
	Success(msg string)
	Block(emoji, title string, rows []KeyValue)
}

// New returns a UserInterface writing to out.
func New(out io.Writer, emojiEnabled bool) UserInterface {
	return consoleUI{console: NewConsole(out, emojiEnabled)}
}

type consoleUI struct {
	console *Console
}

func (u consoleUI) Info(msg string)    { u.console.Info(msg) }
func (u consoleUI) Warn(msg string)    { u.console.Warn(msg) }
func (u consoleUI) Success(msg string) { u.console.Success(msg) }

func (u consoleUI) Block(emoji, title string, rows []KeyValue) {
	u.console.BlockStart(emoji, title)
	for _, kv := range rows {
		u.console.Item(kv.Key, kv.Value)
	}
	u.console.BlockEnd()
}
