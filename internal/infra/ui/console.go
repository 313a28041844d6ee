// Where: internal/infra/ui/console.go
// What: Console output helpers for consistent CLI UX.
// Why: Standardize emojis, indentation, and block structure across commands.
package ui

import (
	"fmt"
	"io"
	"strings"
)

// Console provides helper methods for formatted output.
type Console struct {
	Out          io.Writer
	EmojiEnabled bool
}

// NewConsole creates a Console with explicit emoji settings.
func NewConsole(out io.Writer, emojiEnabled bool) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{Out: out, EmojiEnabled: emojiEnabled}
}

// Header prints a section header with an emoji.
func (c *Console) Header(emoji, title string) {
	fmt.Fprintf(c.Out, "%s%s\n", c.emojiPrefix(emoji), title)
}

// BlockStart opens a block with a blank line and a header.
func (c *Console) BlockStart(emoji, title string) {
	fmt.Fprintln(c.Out)
	c.Header(emoji, title)
}

// BlockEnd closes a block with a blank line.
func (c *Console) BlockEnd() {
	fmt.Fprintln(c.Out)
}

// Item prints a key-value item with indentation.
func (c *Console) Item(key string, value any) {
	fmt.Fprintf(c.Out, "   %-24s %v\n", key+":", value)
}

func (c *Console) Success(msg string) {
	c.prefixed("✅", "[ok] ", msg)
}

func (c *Console) Info(msg string) {
	fmt.Fprintln(c.Out, msg)
}

func (c *Console) Warn(msg string) {
	c.prefixed("⚠️", "[warn] ", msg)
}

func (c *Console) prefixed(emoji, fallback, msg string) {
	prefix := c.emojiPrefix(emoji)
	if prefix == "" {
		prefix = fallback
	}
	fmt.Fprintf(c.Out, "%s%s\n", prefix, msg)
}

func (c *Console) emojiPrefix(emoji string) string {
	if !c.EmojiEnabled || strings.TrimSpace(emoji) == "" {
		return ""
	}
	return emoji + " "
}
