// Where: internal/command/output.go
// What: Output helpers for command adapters.
// Why: Centralize UserInterface construction and emoji detection.
package command

import (
	"io"
	"os"
	"strings"

	"github.com/poruru/efstack/internal/constants"
	"github.com/poruru/efstack/internal/infra/config"
	"github.com/poruru/efstack/internal/infra/interaction"
	"github.com/poruru/efstack/internal/infra/ui"
)

func commandUI(out io.Writer, emojiEnabled bool) ui.UserInterface {
	return ui.New(out, emojiEnabled)
}

// resolveEmojiEnabled enables emoji only on a capable terminal unless disabled.
func resolveEmojiEnabled(out io.Writer, noEmoji bool, lookup config.LookupFunc) bool {
	if noEmoji {
		return false
	}
	for _, key := range []string{constants.EnvNoEmoji, "NO_EMOJI"} {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return false
		}
	}
	if term, _ := lookup("TERM"); strings.EqualFold(strings.TrimSpace(term), "dumb") {
		return false
	}
	if file, ok := out.(*os.File); ok {
		return interaction.IsTerminal(file)
	}
	return false
}
