// Where: internal/command/app.go
// What: CLI entrypoint logic.
// Why: Provide a testable command dispatcher.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/poruru/efstack/internal/infra/config"
	"github.com/poruru/efstack/internal/infra/interaction"
	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/infra/ui"
	"github.com/poruru/efstack/internal/usecase/deploy"
	"github.com/poruru/efstack/internal/version"
)

// Dependencies holds the injected collaborators of every command.
type Dependencies struct {
	Out       io.Writer
	ErrOut    io.Writer
	Prompter  interaction.Prompter
	LookupEnv config.LookupFunc
	Stack     StackDeps
}

// StackDeps builds the AWS-backed workflow once settings are resolved.
type StackDeps struct {
	NewWorkflow func(provisioner.Settings, ui.UserInterface) StackWorkflow
}

// StackWorkflow is the subset of the deploy use case the commands drive.
type StackWorkflow interface {
	Deploy(ctx context.Context, req deploy.Request) (deploy.Result, error)
	Destroy(ctx context.Context, req deploy.DestroyRequest) error
	Status(ctx context.Context, stackName string, eventLimit int) (deploy.Status, error)
}

// CLI defines the command-line interface structure parsed by Kong.
type CLI struct {
	Config   string `short:"c" help:"Path to efstack.yaml (default: $EFSTACK_CONFIG or ./efstack.yaml)"`
	EnvFile  string `name:"env-file" help:"Path to .env file"`
	Snapshot string `short:"s" help:"Snapshot to build (network, cluster, database, repository, events)"`
	NoEmoji  bool   `name:"no-emoji" help:"Disable emoji output"`

	Synth     SynthCmd     `cmd:"" help:"Render the CloudFormation template"`
	Plan      PlanCmd      `cmd:"" help:"Show the resources a snapshot declares"`
	Check     CheckCmd     `cmd:"" help:"Verify a template against the stack invariants"`
	Simulate  SimulateCmd  `cmd:"" help:"Show which task launches an event would trigger"`
	Snapshots SnapshotsCmd `cmd:"" help:"List snapshots and their features"`
	Init      InitCmd      `cmd:"" help:"Write a default efstack.yaml"`
	Deploy    DeployCmd    `cmd:"" help:"Create or update the stack"`
	Destroy   DestroyCmd   `cmd:"" help:"Delete the stack"`
	Status    StatusCmd    `cmd:"" help:"Show the stack status and recent events"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

type (
	SynthCmd struct {
		Output   string `short:"o" help:"Write the template to a file instead of stdout"`
		Format   string `short:"f" help:"Output format (json/yaml, default: from --output extension or json)"`
		NoVerify bool   `name:"no-verify" help:"Emit the template even when verification fails"`
	}

	PlanCmd struct{}

	CheckCmd struct {
		Template string `short:"t" help:"Check a template file instead of the configured stack"`
	}

	SimulateCmd struct {
		Template   string `short:"t" help:"Use a template file instead of the configured stack"`
		Event      string `help:"Path to an event JSON document"`
		Source     string `help:"Event source (ignored with --event)"`
		DetailType string `name:"detail-type" default:"Simulated Event" help:"Event detail-type"`
		Detail     string `help:"Event detail as a JSON object"`
	}

	SnapshotsCmd struct{}

	InitCmd struct {
		Force bool `help:"Overwrite an existing config file"`
	}

	DeployCmd struct {
		Parameters map[string]string `name:"parameter" short:"p" help:"Template parameter KEY=VALUE (repeatable)"`
		Tags       map[string]string `name:"tag" help:"Stack tag KEY=VALUE (repeatable)"`
		Timeout    string            `help:"Maximum time to wait for completion (e.g. 45m)"`
	}

	DestroyCmd struct {
		Yes     bool   `short:"y" help:"Skip the confirmation prompt"`
		Timeout string `help:"Maximum time to wait for deletion (e.g. 30m)"`
	}

	StatusCmd struct {
		Events int `short:"n" default:"10" help:"Number of recent stack events to show"`
	}

	VersionCmd struct{}
)

// Run parses args, dispatches to the matching handler, and returns the exit code.
func Run(args []string, deps Dependencies) int {
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}
	if deps.ErrOut == nil {
		deps.ErrOut = os.Stderr
	}
	if deps.LookupEnv == nil {
		deps.LookupEnv = os.LookupEnv
	}
	if deps.Prompter == nil {
		deps.Prompter = interaction.HuhPrompter{}
	}
	plain := commandUI(out, false)

	if len(args) == 0 {
		return runNoArgs(out)
	}

	cli := CLI{}
	parser, err := kong.New(&cli,
		kong.Name(cliName()),
		kong.Description("Declare, verify, and deploy an event-triggered Fargate stack."),
		kong.Writers(out, deps.ErrOut),
	)
	if err != nil {
		return exitWithError(out, err)
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return handleParseError(err, out)
	}

	if cli.EnvFile != "" {
		if err := godotenv.Load(cli.EnvFile); err != nil {
			plain.Warn(fmt.Sprintf("Warning: failed to load env file %s: %v", cli.EnvFile, err))
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			plain.Warn(fmt.Sprintf("Warning: failed to load .env: %v", err))
		}
	}

	if exitCode, handled := dispatchCommand(ctx.Command(), cli, deps, out); handled {
		return exitCode
	}

	plain.Warn("unknown command")
	return 1
}

type commandHandler func(CLI, Dependencies, io.Writer) int

func dispatchCommand(command string, cli CLI, deps Dependencies, out io.Writer) (int, bool) {
	handlers := map[string]commandHandler{
		"synth":     runSynth,
		"plan":      runPlan,
		"check":     runCheck,
		"simulate":  runSimulate,
		"snapshots": runSnapshots,
		"init":      runInit,
		"deploy":    runDeploy,
		"destroy":   runDestroy,
		"status":    runStatus,
		"version":   func(_ CLI, _ Dependencies, out io.Writer) int { return runVersion(out) },
	}
	if handler, ok := handlers[command]; ok {
		return handler(cli, deps, out), true
	}
	return 1, false
}

func runVersion(out io.Writer) int {
	fmt.Fprintln(out, version.GetVersion())
	return 0
}

func runNoArgs(out io.Writer) int {
	plain := commandUI(out, false)
	cmd := cliName()
	plain.Info("Usage:")
	plain.Info(fmt.Sprintf("  %s synth [--snapshot <name>] [--format json|yaml] [-o <file>]", cmd))
	plain.Info(fmt.Sprintf("  %s deploy [--parameter KEY=VALUE]", cmd))
	plain.Info("")
	plain.Info(fmt.Sprintf("Try: %s --help", cmd))
	return 0
}

// handleParseError turns common flag mistakes into short hints.
func handleParseError(err error, out io.Writer) int {
	msg := err.Error()
	plain := commandUI(out, false)
	cmd := cliName()
	switch {
	case strings.Contains(msg, "--snapshot") && strings.Contains(msg, "expected"):
		plain.Warn("`-s/--snapshot` expects a value.")
		plain.Info(fmt.Sprintf("Run `%s snapshots` to list them.", cmd))
		return 1
	case strings.Contains(msg, "--format"):
		plain.Warn("`-f/--format` must be json or yaml.")
		plain.Info(fmt.Sprintf("Example: %s synth --format yaml", cmd))
		return 1
	case strings.Contains(msg, "--parameter"):
		plain.Warn("`-p/--parameter` expects KEY=VALUE.")
		plain.Info(fmt.Sprintf("Example: %s deploy -p DatabasePassword=...", cmd))
		return 1
	}
	return exitWithError(out, err)
}
