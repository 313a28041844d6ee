// Where: internal/command/deploy_test.go
// What: Tests for deploy, destroy, and status commands.
// Why: Ensure flags and config reach the stack workflow unchanged.
package command

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/infra/interaction"
	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/usecase/deploy"
)

func writeConfig(t *testing.T, dir, payload string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "efstack.yaml"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestDeployPassesResolvedRequest(t *testing.T) {
	dir := t.TempDir()
	setWorkingDir(t, dir)
	writeConfig(t, dir, strings.Join([]string{
		"version: 1",
		"snapshot: database",
		"region: eu-west-1",
		"deploy:",
		"  artifactBucket: artifacts",
		"  ledgerTable: ledger",
		"  timeout: 45m",
		"  tags:",
		"    team: platform",
		"    env: dev",
		"",
	}, "\n"))
	workflow := &fakeWorkflow{}
	env := map[string]string{"EFSTACK_ENDPOINT": "http://localhost:4566"}

	code, out, _ := runCLI(env, workflow, nil, "deploy", "-p", "Extra=1", "--tag", "env=prod")
	if code != 0 {
		t.Fatalf("deploy failed: %s", out)
	}
	if len(workflow.deploys) != 1 {
		t.Fatalf("expected one deploy, got %d", len(workflow.deploys))
	}
	req := workflow.deploys[0]
	if req.Snapshot != stack.SnapshotDatabase || req.Options.Features != stack.SnapshotDatabase.Features() {
		t.Fatalf("unexpected snapshot: %s %+v", req.Snapshot, req.Options.Features)
	}
	if req.ArtifactBucket != "artifacts" || req.LedgerTable != "ledger" || req.Timeout != 45*time.Minute {
		t.Fatalf("unexpected deploy settings: %+v", req)
	}
	if req.Tags["team"] != "platform" || req.Tags["env"] != "prod" {
		t.Fatalf("flag tags must override config tags: %v", req.Tags)
	}
	if req.Parameters["Extra"] != "1" {
		t.Fatalf("unexpected parameters: %v", req.Parameters)
	}
	if workflow.settings != (provisioner.Settings{Region: "eu-west-1", Endpoint: "http://localhost:4566"}) {
		t.Fatalf("unexpected aws settings: %+v", workflow.settings)
	}
	if !strings.Contains(out, "CREATE_COMPLETE") || !strings.Contains(out, "0123456789ab") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDeployTimeoutFlagOverridesConfig(t *testing.T) {
	workflow := &fakeWorkflow{}
	code, out, _ := runInTempDir(t, nil, workflow, nil, "deploy", "--timeout", "5m")
	if code != 0 {
		t.Fatalf("deploy failed: %s", out)
	}
	if workflow.deploys[0].Timeout != 5*time.Minute {
		t.Fatalf("unexpected timeout: %s", workflow.deploys[0].Timeout)
	}
}

func TestDeployInvalidTimeout(t *testing.T) {
	code, out, _ := runInTempDir(t, nil, &fakeWorkflow{}, nil, "deploy", "--timeout", "soon")
	if code == 0 || !strings.Contains(out, "invalid --timeout") {
		t.Fatalf("unexpected result: %d %q", code, out)
	}
}

func TestDeployReportsWorkflowError(t *testing.T) {
	workflow := &fakeWorkflow{deployErr: deploy.ErrStackBusy}
	code, out, _ := runInTempDir(t, nil, workflow, nil, "deploy")
	if code == 0 || !strings.Contains(out, deploy.ErrStackBusy.Error()) {
		t.Fatalf("unexpected result: %d %q", code, out)
	}
}

func TestDeployWithoutWorkflow(t *testing.T) {
	code, out, _ := runInTempDir(t, nil, nil, nil, "deploy")
	if code == 0 || !strings.Contains(out, errWorkflowNotConfigured.Error()) {
		t.Fatalf("unexpected result: %d %q", code, out)
	}
}

func TestDestroyAsksForConfirmation(t *testing.T) {
	workflow := &fakeWorkflow{}
	prompter := &fakePrompter{answer: false}
	code, out, _ := runInTempDir(t, nil, workflow, prompter, "destroy")
	if code == 0 || !strings.Contains(out, "Aborted") {
		t.Fatalf("unexpected result: %d %q", code, out)
	}
	if len(prompter.titles) != 1 || !strings.Contains(prompter.titles[0], stack.DefaultStackName) {
		t.Fatalf("unexpected prompts: %v", prompter.titles)
	}
	if len(workflow.destroys) != 0 {
		t.Fatalf("declined destroy must not run")
	}
}

func TestDestroyConfirmed(t *testing.T) {
	workflow := &fakeWorkflow{}
	prompter := &fakePrompter{answer: true}
	code, out, _ := runInTempDir(t, nil, workflow, prompter, "destroy")
	if code != 0 {
		t.Fatalf("destroy failed: %s", out)
	}
	if len(workflow.destroys) != 1 || workflow.destroys[0].StackName != stack.DefaultStackName {
		t.Fatalf("unexpected destroys: %+v", workflow.destroys)
	}
}

func TestDestroyNonInteractiveNeedsYes(t *testing.T) {
	workflow := &fakeWorkflow{}
	prompter := &fakePrompter{err: interaction.ErrNotInteractive}
	code, out, _ := runInTempDir(t, nil, workflow, prompter, "destroy")
	if code == 0 || !strings.Contains(out, "--yes") {
		t.Fatalf("unexpected result: %d %q", code, out)
	}

	code, out, _ = runCLI(nil, workflow, prompter, "destroy", "--yes")
	if code != 0 {
		t.Fatalf("destroy --yes failed: %s", out)
	}
	if len(prompter.titles) != 1 {
		t.Fatalf("--yes must skip the prompt")
	}
}

func TestDestroyReportsWorkflowError(t *testing.T) {
	workflow := &fakeWorkflow{destroyErr: errors.New("stack not found")}
	code, out, _ := runInTempDir(t, nil, workflow, nil, "destroy", "-y")
	if code == 0 || !strings.Contains(out, "stack not found") {
		t.Fatalf("unexpected result: %d %q", code, out)
	}
}

func TestStatusPrintsOutputsAndEvents(t *testing.T) {
	workflow := &fakeWorkflow{status: deploy.Status{
		Stack: provisioner.StackState{
			Name:    stack.DefaultStackName,
			ID:      "arn:stack",
			Status:  "UPDATE_COMPLETE",
			Outputs: []provisioner.StackOutput{{Key: stack.OutputVpcID, Value: "vpc-123"}},
		},
		Events: []provisioner.StackEvent{
			{LogicalID: stack.DBInstanceID, Status: "UPDATE_FAILED", Reason: "storage full"},
		},
	}}
	code, out, _ := runInTempDir(t, nil, workflow, nil, "status", "-n", "5")
	if code != 0 {
		t.Fatalf("status failed: %s", out)
	}
	for _, want := range []string{"UPDATE_COMPLETE", "vpc-123", "Recent events", "UPDATE_FAILED storage full"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
	if len(workflow.statusFor) != 1 || workflow.statusFor[0] != stack.DefaultStackName {
		t.Fatalf("unexpected status calls: %v", workflow.statusFor)
	}
}
