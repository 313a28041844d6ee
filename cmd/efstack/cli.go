// Where: cmd/efstack/cli.go
// What: CLI dependency wiring helpers.
// Why: Centralize construction of AWS-backed collaborators for testability.
package main

import (
	"os"

	"github.com/poruru/efstack/internal/command"
	"github.com/poruru/efstack/internal/infra/interaction"
	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/infra/ui"
	"github.com/poruru/efstack/internal/usecase/deploy"
)

var newClientFactory = provisioner.NewClientFactory

// buildDependencies constructs the runtime dependencies of the CLI. AWS
// clients are created lazily, after config and flags pick the account.
func buildDependencies() command.Dependencies {
	return command.Dependencies{
		Out:       os.Stdout,
		ErrOut:    os.Stderr,
		Prompter:  interaction.HuhPrompter{},
		LookupEnv: os.LookupEnv,
		Stack: command.StackDeps{
			NewWorkflow: newStackWorkflow,
		},
	}
}

func newStackWorkflow(settings provisioner.Settings, userInterface ui.UserInterface) command.StackWorkflow {
	return deploy.NewWorkflow(newClientFactory(settings), userInterface)
}
