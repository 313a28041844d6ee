// Where: internal/command/check.go
// What: check, simulate, and snapshots commands.
// Why: Inspect templates and event routing offline.
package command

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/poruru/efstack/internal/domain/events"
	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/domain/verify"
	"github.com/poruru/efstack/internal/infra/ui"
)

func runCheck(cli CLI, deps Dependencies, out io.Writer) int {
	tpl, label, err := resolveTemplate(cli, deps, cli.Check.Template)
	if err != nil {
		return exitWithError(out, err)
	}
	console := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	report := verify.Check(tpl)
	if !report.OK() {
		for _, finding := range report.Findings {
			console.Warn(finding.String())
		}
		return exitWithError(out, fmt.Errorf("%s: %d invariant violation(s)", label, len(report.Findings)))
	}
	console.Success(fmt.Sprintf("%s: %d rules passed (%s)", label, len(report.Rules), strings.Join(report.Rules, ", ")))
	return 0
}

func runSimulate(cli CLI, deps Dependencies, out io.Writer) int {
	ev, err := simulatedEvent(cli.Simulate, deps.LookupEnv)
	if err != nil {
		return exitWithError(out, err)
	}
	tpl, label, err := resolveTemplate(cli, deps, cli.Simulate.Template)
	if err != nil {
		return exitWithError(out, err)
	}
	launches, err := events.Dispatch(tpl, ev)
	if err != nil {
		return exitWithError(out, err)
	}
	console := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	if len(launches) == 0 {
		console.Info(fmt.Sprintf("%s: no rule matches source %q", label, ev.Source))
		return 0
	}
	for _, launch := range launches {
		console.Block("🚀", fmt.Sprintf("%s -> %s", launch.Rule, launch.Target), []ui.KeyValue{
			{Key: "Cluster", Value: launch.Cluster},
			{Key: "TaskDefinition", Value: launch.TaskDefinition},
			{Key: "Role", Value: launch.Role},
			{Key: "LaunchType", Value: launch.LaunchType},
			{Key: "TaskCount", Value: launch.TaskCount},
			{Key: "Subnets", Value: strings.Join(launch.Subnets, ", ")},
			{Key: "SecurityGroups", Value: strings.Join(launch.SecurityGroups, ", ")},
			{Key: "AssignPublicIp", Value: launch.AssignPublicIP},
		})
	}
	console.Success(fmt.Sprintf("%d task launch(es) for source %q", len(launches), ev.Source))
	return 0
}

// simulatedEvent reads --event, or assembles an event from flags.
func simulatedEvent(flags SimulateCmd, lookup func(string) (string, bool)) (events.Event, error) {
	if flags.Event != "" {
		data, err := os.ReadFile(flags.Event)
		if err != nil {
			return events.Event{}, fmt.Errorf("read event: %w", err)
		}
		return events.ParseEvent(data)
	}
	source := strings.TrimSpace(flags.Source)
	if source == "" {
		source = stack.DefaultEventSource
	}
	ev := events.Event{
		Version:    "0",
		Source:     source,
		DetailType: flags.DetailType,
		Time:       time.Now().UTC(),
		Resources:  []string{},
		Detail:     map[string]any{},
	}
	if region, ok := lookup("AWS_REGION"); ok {
		ev.Region = region
	}
	if strings.TrimSpace(flags.Detail) != "" {
		if err := json.Unmarshal([]byte(flags.Detail), &ev.Detail); err != nil {
			return events.Event{}, fmt.Errorf("invalid --detail: %w", err)
		}
	}
	return ev, nil
}

func runSnapshots(cli CLI, deps Dependencies, out io.Writer) int {
	console := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	for _, snapshot := range stack.Snapshots() {
		features := snapshot.Features()
		title := string(snapshot)
		if snapshot == stack.DefaultSnapshot {
			title += " (default)"
		}
		names := features.Names()
		if len(names) == 0 {
			names = []string{"network only"}
		}
		console.Block("🧩", title, []ui.KeyValue{
			{Key: "Features", Value: strings.Join(names, ", ")},
			{Key: "Steps", Value: strings.Join(stack.Steps(features), " -> ")},
		})
	}
	return 0
}
