// Where: internal/command/error_helpers.go
// What: Shared CLI error output.
// Why: Keep failure lines consistent across commands.
package command

import (
	"fmt"
	"io"
)

// exitWithError prints err and returns exit code 1.
func exitWithError(out io.Writer, err error) int {
	commandUI(out, false).Warn(fmt.Sprintf("✗ %v", err))
	return 1
}
