// Where: cmd/efstack/main.go
// What: CLI entrypoint.
// Why: Execute efstack commands with configured dependencies.
package main

import (
	"os"

	"github.com/poruru/efstack/internal/command"
)

func main() {
	os.Exit(command.Run(os.Args[1:], buildDependencies()))
}
