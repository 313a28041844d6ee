// Where: internal/command/project.go
// What: Resolve config, environment, and flags into builder options.
// Why: Share one precedence chain between every command.
package command

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poruru/efstack/internal/constants"
	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/infra/config"
	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/infra/render"
)

// project is the resolved input of a command.
type project struct {
	path     string
	config   config.Config
	snapshot stack.Snapshot
	options  stack.Options
}

// resolveConfigPath applies flag > EFSTACK_CONFIG > default.
func resolveConfigPath(cli CLI, lookup config.LookupFunc) (path string, explicit bool) {
	if p := strings.TrimSpace(cli.Config); p != "" {
		return p, true
	}
	if p, ok := lookup(constants.EnvConfig); ok && strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p), true
	}
	return config.DefaultPath, false
}

// loadProject reads the config file, then environment, then the snapshot flag.
func loadProject(cli CLI, deps Dependencies) (project, error) {
	path, explicit := resolveConfigPath(cli, deps.LookupEnv)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return project{}, err
	}
	cfg.ApplyEnv(deps.LookupEnv)
	if s := strings.TrimSpace(cli.Snapshot); s != "" {
		cfg.Snapshot = s
	}
	snapshot, err := cfg.SnapshotName()
	if err != nil {
		return project{}, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return project{}, err
	}
	return project{path: path, config: cfg, snapshot: snapshot, options: opts}, nil
}

// resolveTemplate reads a template file when given, otherwise builds the project stack.
func resolveTemplate(cli CLI, deps Dependencies, file string) (*cfn.Template, string, error) {
	if strings.TrimSpace(file) != "" {
		tpl, err := render.ReadFile(file)
		if err != nil {
			return nil, "", err
		}
		return tpl, file, nil
	}
	p, err := loadProject(cli, deps)
	if err != nil {
		return nil, "", err
	}
	tpl, err := stack.Build(p.options)
	if err != nil {
		return nil, "", err
	}
	return tpl, fmt.Sprintf("%s (%s)", p.options.StackName, p.snapshot), nil
}

func (p project) awsSettings() provisioner.Settings {
	return provisioner.Settings{
		Region:   p.config.Region,
		Profile:  p.config.Profile,
		Endpoint: p.config.Endpoint,
	}
}

// timeout prefers the flag value over deploy.timeout.
func (p project) timeout(flag string) (time.Duration, error) {
	if strings.TrimSpace(flag) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(flag))
		if err != nil {
			return 0, fmt.Errorf("invalid --timeout %q: %w", flag, err)
		}
		return d, nil
	}
	return p.config.DeployTimeout()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
