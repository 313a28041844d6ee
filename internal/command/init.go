// Where: internal/command/init.go
// What: init command.
// Why: Give new projects an explicit, editable copy of the defaults.
package command

import (
	"fmt"
	"io"

	"github.com/poruru/efstack/internal/infra/config"
)

func runInit(cli CLI, deps Dependencies, out io.Writer) int {
	path, _ := resolveConfigPath(cli, deps.LookupEnv)
	if fileExists(path) && !cli.Init.Force {
		return exitWithError(out, fmt.Errorf("%s already exists (use --force to overwrite)", path))
	}
	cfg := config.Default()
	if cli.Snapshot != "" {
		cfg.Snapshot = cli.Snapshot
		if _, err := cfg.SnapshotName(); err != nil {
			return exitWithError(out, err)
		}
	}
	if err := config.Save(path, cfg); err != nil {
		return exitWithError(out, err)
	}
	commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv)).
		Success(fmt.Sprintf("Wrote %s (snapshot %s)", path, cfg.Snapshot))
	return 0
}
