// Where: internal/command/deploy.go
// What: deploy, destroy, and status commands.
// Why: Adapt CLI flags to the stack workflow.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/poruru/efstack/internal/infra/interaction"
	"github.com/poruru/efstack/internal/infra/ui"
	"github.com/poruru/efstack/internal/usecase/deploy"
)

var errWorkflowNotConfigured = errors.New("stack workflow is not configured")

// stackContext is cancelled on interrupt so waits stop promptly.
var stackContext = func() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newWorkflow(p project, deps Dependencies, console ui.UserInterface) (StackWorkflow, error) {
	if deps.Stack.NewWorkflow == nil {
		return nil, errWorkflowNotConfigured
	}
	return deps.Stack.NewWorkflow(p.awsSettings(), console), nil
}

func runDeploy(cli CLI, deps Dependencies, out io.Writer) int {
	p, err := loadProject(cli, deps)
	if err != nil {
		return exitWithError(out, err)
	}
	timeout, err := p.timeout(cli.Deploy.Timeout)
	if err != nil {
		return exitWithError(out, err)
	}
	console := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	workflow, err := newWorkflow(p, deps, console)
	if err != nil {
		return exitWithError(out, err)
	}

	tags := make(map[string]string, len(p.config.Deploy.Tags)+len(cli.Deploy.Tags))
	for k, v := range p.config.Deploy.Tags {
		tags[k] = v
	}
	for k, v := range cli.Deploy.Tags {
		tags[k] = v
	}

	ctx, cancel := stackContext()
	defer cancel()
	result, err := workflow.Deploy(ctx, deploy.Request{
		Options:        p.options,
		Snapshot:       p.snapshot,
		Parameters:     cli.Deploy.Parameters,
		Tags:           tags,
		ArtifactBucket: p.config.Deploy.ArtifactBucket,
		ArtifactPrefix: p.config.Deploy.ArtifactPrefix,
		Endpoint:       p.config.Endpoint,
		LedgerTable:    p.config.Deploy.LedgerTable,
		Timeout:        timeout,
	})
	if err != nil {
		return exitWithError(out, err)
	}
	console.Block("🧾", "Deploy", []ui.KeyValue{
		{Key: "Stack", Value: p.options.StackName},
		{Key: "Snapshot", Value: p.snapshot},
		{Key: "Action", Value: result.Action},
		{Key: "Status", Value: result.Status},
		{Key: "Template", Value: shortHash(result.TemplateHash)},
	})
	return 0
}

func runDestroy(cli CLI, deps Dependencies, out io.Writer) int {
	p, err := loadProject(cli, deps)
	if err != nil {
		return exitWithError(out, err)
	}
	timeout, err := p.timeout(cli.Destroy.Timeout)
	if err != nil {
		return exitWithError(out, err)
	}
	if !cli.Destroy.Yes {
		confirmed, err := deps.Prompter.Confirm(
			fmt.Sprintf("Delete stack %s?", p.options.StackName),
			"Resources without a Retain policy are removed permanently.",
		)
		if errors.Is(err, interaction.ErrNotInteractive) {
			return exitWithError(out, fmt.Errorf("%w; pass --yes to delete without a prompt", err))
		}
		if err != nil {
			return exitWithError(out, err)
		}
		if !confirmed {
			commandUI(out, false).Info("Aborted")
			return 1
		}
	}
	console := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	workflow, err := newWorkflow(p, deps, console)
	if err != nil {
		return exitWithError(out, err)
	}
	ctx, cancel := stackContext()
	defer cancel()
	err = workflow.Destroy(ctx, deploy.DestroyRequest{
		StackName:   p.options.StackName,
		Snapshot:    p.snapshot,
		LedgerTable: p.config.Deploy.LedgerTable,
		Timeout:     timeout,
	})
	if err != nil {
		return exitWithError(out, err)
	}
	return 0
}

func runStatus(cli CLI, deps Dependencies, out io.Writer) int {
	p, err := loadProject(cli, deps)
	if err != nil {
		return exitWithError(out, err)
	}
	console := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	workflow, err := newWorkflow(p, deps, console)
	if err != nil {
		return exitWithError(out, err)
	}
	ctx, cancel := stackContext()
	defer cancel()
	status, err := workflow.Status(ctx, p.options.StackName, cli.Status.Events)
	if err != nil {
		return exitWithError(out, err)
	}

	rows := []ui.KeyValue{
		{Key: "Status", Value: status.Stack.Status},
		{Key: "StackId", Value: status.Stack.ID},
	}
	if status.Stack.StatusReason != "" {
		rows = append(rows, ui.KeyValue{Key: "Reason", Value: status.Stack.StatusReason})
	}
	if !status.Stack.UpdatedAt.IsZero() {
		rows = append(rows, ui.KeyValue{Key: "UpdatedAt", Value: status.Stack.UpdatedAt.Format("2006-01-02 15:04:05Z07:00")})
	}
	for _, output := range status.Stack.Outputs {
		rows = append(rows, ui.KeyValue{Key: output.Key, Value: output.Value})
	}
	console.Block("📋", status.Stack.Name, rows)

	if len(status.Events) > 0 {
		eventRows := make([]ui.KeyValue, 0, len(status.Events))
		for _, event := range status.Events {
			line := event.Status
			if event.Reason != "" {
				line += " " + event.Reason
			}
			eventRows = append(eventRows, ui.KeyValue{Key: event.LogicalID, Value: line})
		}
		console.Block("🕑", "Recent events", eventRows)
	}
	return 0
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
