// Where: internal/infra/config/config.go
// What: efstack.yaml load/save and mapping onto stack options.
// Why: Keep every tunable of the stack in one validated file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/infra/fileops"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "efstack.yaml"

// ErrInvalidConfig wraps schema and mapping failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config mirrors efstack.yaml. Pointer fields distinguish "unset" from zero
// values so defaults survive partial files.
type Config struct {
	Version    int              `yaml:"version,omitempty"`
	StackName  string           `yaml:"stackName,omitempty"`
	Snapshot   string           `yaml:"snapshot,omitempty"`
	Region     string           `yaml:"region,omitempty"`
	Profile    string           `yaml:"profile,omitempty"`
	Endpoint   string           `yaml:"endpoint,omitempty"`
	Features   FeatureOverrides `yaml:"features,omitempty"`
	Network    NetworkConfig    `yaml:"network,omitempty"`
	Cluster    ClusterConfig    `yaml:"cluster,omitempty"`
	Repository RepositoryConfig `yaml:"repository,omitempty"`
	Database   DatabaseConfig   `yaml:"database,omitempty"`
	Task       TaskConfig       `yaml:"task,omitempty"`
	Logs       LogsConfig       `yaml:"logs,omitempty"`
	Events     EventsConfig     `yaml:"events,omitempty"`
	Deploy     DeployConfig     `yaml:"deploy,omitempty"`
}

// FeatureOverrides replace individual switches of the selected snapshot.
type FeatureOverrides struct {
	Cluster          *bool `yaml:"cluster,omitempty"`
	Workload         *bool `yaml:"workload,omitempty"`
	CreateRepository *bool `yaml:"createRepository,omitempty"`
	DestroyOnDelete  *bool `yaml:"destroyOnDelete,omitempty"`
	EventTrigger     *bool `yaml:"eventTrigger,omitempty"`
}

type NetworkConfig struct {
	CIDR        string `yaml:"cidr,omitempty"`
	NatGateways int    `yaml:"natGateways,omitempty"`
}

type ClusterConfig struct {
	Name string `yaml:"name,omitempty"`
}

type RepositoryConfig struct {
	Name string `yaml:"name,omitempty"`
	Tag  string `yaml:"tag,omitempty"`
}

type DatabaseConfig struct {
	EngineVersion       string `yaml:"engineVersion,omitempty"`
	InstanceClass       string `yaml:"instanceClass,omitempty"`
	AllocatedStorage    int    `yaml:"allocatedStorage,omitempty"`
	Name                string `yaml:"name,omitempty"`
	Username            string `yaml:"username,omitempty"`
	GenerateCredentials *bool  `yaml:"generateCredentials,omitempty"`
	AllowAllOutbound    *bool  `yaml:"allowAllOutbound,omitempty"`
	BackupRetentionDays *int   `yaml:"backupRetentionDays,omitempty"`
}

type TaskConfig struct {
	Family        string            `yaml:"family,omitempty"`
	CPU           int               `yaml:"cpu,omitempty"`
	Memory        int               `yaml:"memory,omitempty"`
	ContainerName string            `yaml:"containerName,omitempty"`
	StreamPrefix  string            `yaml:"streamPrefix,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
}

type LogsConfig struct {
	RetentionDays int `yaml:"retentionDays,omitempty"`
}

type EventsConfig struct {
	Source    string `yaml:"source,omitempty"`
	RuleName  string `yaml:"ruleName,omitempty"`
	TaskCount int    `yaml:"taskCount,omitempty"`
}

// DeployConfig controls how the template reaches the provisioning engine.
type DeployConfig struct {
	ArtifactBucket string            `yaml:"artifactBucket,omitempty"`
	ArtifactPrefix string            `yaml:"artifactPrefix,omitempty"`
	LedgerTable    string            `yaml:"ledgerTable,omitempty"`
	Timeout        string            `yaml:"timeout,omitempty"`
	Tags           map[string]string `yaml:"tags,omitempty"`
}

// Load reads the config file. A missing file yields an empty Config unless required.
func Load(path string, required bool) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(payload)
}

// Parse validates the document against the embedded schema and decodes it.
func Parse(payload []byte) (Config, error) {
	if err := validateDocument(payload); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decode: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically, creating parent directories as needed.
func Save(path string, cfg Config) error {
	payload, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fileops.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Default returns a fully populated config reproducing the default stack.
func Default() Config {
	opts := stack.DefaultOptions()
	generate, allowOutbound, backup := opts.Database.GenerateCredentials, opts.Database.AllowAllOutbound, opts.Database.BackupRetentionDays
	return Config{
		Version:   1,
		StackName: opts.StackName,
		Snapshot:  string(stack.DefaultSnapshot),
		Network:   NetworkConfig{CIDR: opts.Network.CIDR, NatGateways: opts.Network.NatGateways},
		Repository: RepositoryConfig{
			Name: opts.Repository.Name,
			Tag:  opts.Repository.Tag,
		},
		Database: DatabaseConfig{
			EngineVersion:       opts.Database.EngineVersion,
			InstanceClass:       opts.Database.InstanceClass,
			AllocatedStorage:    opts.Database.AllocatedStorage,
			Name:                opts.Database.Name,
			Username:            opts.Database.Username,
			GenerateCredentials: &generate,
			AllowAllOutbound:    &allowOutbound,
			BackupRetentionDays: &backup,
		},
		Task: TaskConfig{
			CPU:           opts.Task.CPU,
			Memory:        opts.Task.Memory,
			ContainerName: opts.Task.ContainerName,
			StreamPrefix:  opts.Task.StreamPrefix,
		},
		Logs:   LogsConfig{RetentionDays: opts.Logs.RetentionDays},
		Events: EventsConfig{Source: opts.Events.Source, TaskCount: opts.Events.TaskCount},
	}
}

// SnapshotName resolves the configured snapshot, falling back to the default.
func (c Config) SnapshotName() (stack.Snapshot, error) {
	snapshot, err := stack.ParseSnapshot(c.Snapshot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return snapshot, nil
}

// Options maps the config onto builder options, starting from the defaults.
func (c Config) Options() (stack.Options, error) {
	opts := stack.DefaultOptions()
	snapshot, err := c.SnapshotName()
	if err != nil {
		return stack.Options{}, err
	}
	opts.Features = c.Features.apply(snapshot.Features())

	setString(&opts.StackName, c.StackName)
	setString(&opts.Network.CIDR, c.Network.CIDR)
	setInt(&opts.Network.NatGateways, c.Network.NatGateways)
	setString(&opts.Cluster.Name, c.Cluster.Name)
	setString(&opts.Repository.Name, c.Repository.Name)
	setString(&opts.Repository.Tag, c.Repository.Tag)

	db := c.Database
	setString(&opts.Database.EngineVersion, db.EngineVersion)
	setString(&opts.Database.InstanceClass, db.InstanceClass)
	setInt(&opts.Database.AllocatedStorage, db.AllocatedStorage)
	setString(&opts.Database.Name, db.Name)
	setString(&opts.Database.Username, db.Username)
	setBool(&opts.Database.GenerateCredentials, db.GenerateCredentials)
	setBool(&opts.Database.AllowAllOutbound, db.AllowAllOutbound)
	if db.BackupRetentionDays != nil {
		opts.Database.BackupRetentionDays = *db.BackupRetentionDays
	}

	setString(&opts.Task.Family, c.Task.Family)
	setInt(&opts.Task.CPU, c.Task.CPU)
	setInt(&opts.Task.Memory, c.Task.Memory)
	setString(&opts.Task.ContainerName, c.Task.ContainerName)
	setString(&opts.Task.StreamPrefix, c.Task.StreamPrefix)
	if len(c.Task.Environment) > 0 {
		opts.Task.Environment = make(map[string]string, len(c.Task.Environment))
		for k, v := range c.Task.Environment {
			opts.Task.Environment[k] = v
		}
	}
	setInt(&opts.Logs.RetentionDays, c.Logs.RetentionDays)
	setString(&opts.Events.Source, c.Events.Source)
	setString(&opts.Events.RuleName, c.Events.RuleName)
	setInt(&opts.Events.TaskCount, c.Events.TaskCount)

	if err := opts.Validate(); err != nil {
		return stack.Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return opts, nil
}

// DeployTimeout parses deploy.timeout; zero means the caller's default.
func (c Config) DeployTimeout() (time.Duration, error) {
	if c.Deploy.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Deploy.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: deploy.timeout: %v", ErrInvalidConfig, err)
	}
	return d, nil
}

func (f FeatureOverrides) apply(base stack.Features) stack.Features {
	setBool(&base.Cluster, f.Cluster)
	setBool(&base.Workload, f.Workload)
	setBool(&base.CreateRepository, f.CreateRepository)
	setBool(&base.DestroyOnDelete, f.DestroyOnDelete)
	setBool(&base.EventTrigger, f.EventTrigger)
	return base
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
