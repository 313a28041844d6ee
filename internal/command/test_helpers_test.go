package command

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/infra/ui"
	"github.com/poruru/efstack/internal/usecase/deploy"
)

func setWorkingDir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd %s: %v", prev, err)
		}
	})
}

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

type fakeWorkflow struct {
	settings   provisioner.Settings
	deploys    []deploy.Request
	destroys   []deploy.DestroyRequest
	statusFor  []string
	deployErr  error
	destroyErr error
	status     deploy.Status
}

func (f *fakeWorkflow) Deploy(_ context.Context, req deploy.Request) (deploy.Result, error) {
	f.deploys = append(f.deploys, req)
	if f.deployErr != nil {
		return deploy.Result{}, f.deployErr
	}
	return deploy.Result{Action: "create", Status: "CREATE_COMPLETE", TemplateHash: "0123456789abcdef"}, nil
}

func (f *fakeWorkflow) Destroy(_ context.Context, req deploy.DestroyRequest) error {
	f.destroys = append(f.destroys, req)
	return f.destroyErr
}

func (f *fakeWorkflow) Status(_ context.Context, stackName string, _ int) (deploy.Status, error) {
	f.statusFor = append(f.statusFor, stackName)
	return f.status, nil
}

type fakePrompter struct {
	answer bool
	err    error
	titles []string
}

func (p *fakePrompter) Confirm(title, _ string) (bool, error) {
	p.titles = append(p.titles, title)
	return p.answer, p.err
}

// runInTempDir runs the CLI in an empty working directory with a scripted environment.
func runInTempDir(t *testing.T, env map[string]string, workflow *fakeWorkflow, prompter *fakePrompter, args ...string) (int, string, string) {
	t.Helper()
	setWorkingDir(t, t.TempDir())
	return runCLI(env, workflow, prompter, args...)
}

func runCLI(env map[string]string, workflow *fakeWorkflow, prompter *fakePrompter, args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	deps := Dependencies{
		Out:       &out,
		ErrOut:    &errOut,
		LookupEnv: mapLookup(env),
	}
	if prompter != nil {
		deps.Prompter = prompter
	}
	if workflow != nil {
		deps.Stack.NewWorkflow = func(settings provisioner.Settings, _ ui.UserInterface) StackWorkflow {
			workflow.settings = settings
			return workflow
		}
	}
	code := Run(args, deps)
	return code, out.String(), errOut.String()
}
