// Where: internal/command/branding.go
// What: CLI name used in hints.
// Why: Keep user-facing command names consistent when the binary is renamed.
package command

import (
	"os"
	"strings"

	"github.com/poruru/efstack/internal/meta"
)

func cliName() string {
	if name := strings.TrimSpace(os.Getenv("CLI_CMD")); name != "" {
		return name
	}
	return meta.AppName
}
