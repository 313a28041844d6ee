// Where: internal/domain/stack/options.go
// What: Builder inputs and their defaults.
// Why: Keep every managed-service parameter in one place.
package stack

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

const (
	// ZoneCount is fixed; topologies beyond two zones are not declared.
	ZoneCount = 2
	// DatabasePort is the PostgreSQL port exposed to the task.
	DatabasePort = 5432

	DefaultStackName   = "EventBridgeFargateCloudWatchPostgreSqlCdkStack"
	DefaultEventSource = "custom.my-application"
)

// Options carries every parameter of the declaration.
type Options struct {
	StackName   string
	Description string
	Features    Features

	Network    NetworkOptions
	Cluster    ClusterOptions
	Repository RepositoryOptions
	Database   DatabaseOptions
	Task       TaskOptions
	Logs       LogOptions
	Events     EventOptions
}

type NetworkOptions struct {
	CIDR string
	// NatGateways is 1 (shared) or 2 (one per zone).
	NatGateways int
}

type ClusterOptions struct {
	Name string
}

type RepositoryOptions struct {
	Name string
	Tag  string
}

type DatabaseOptions struct {
	EngineVersion    string
	InstanceClass    string
	AllocatedStorage int
	Name             string
	Username         string
	// GenerateCredentials stores the master credential in Secrets Manager.
	// When false the password is a NoEcho template parameter.
	GenerateCredentials bool
	AllowAllOutbound    bool
	BackupRetentionDays int
}

type TaskOptions struct {
	Family        string
	CPU           int
	Memory        int
	ContainerName string
	StreamPrefix  string
	Environment   map[string]string
}

type LogOptions struct {
	RetentionDays int
}

type EventOptions struct {
	Source    string
	RuleName  string
	TaskCount int
}

// DefaultOptions reproduces the stack as originally declared.
func DefaultOptions() Options {
	return Options{
		StackName: DefaultStackName,
		Features:  DefaultSnapshot.Features(),
		Network: NetworkOptions{
			CIDR:        "10.0.0.0/16",
			NatGateways: ZoneCount,
		},
		Repository: RepositoryOptions{
			Name: "my-app-repo",
			Tag:  "latest",
		},
		Database: DatabaseOptions{
			EngineVersion:       "16.4",
			InstanceClass:       "db.t3.micro",
			AllocatedStorage:    20,
			Name:                "mydatabase",
			Username:            "postgres",
			GenerateCredentials: true,
			AllowAllOutbound:    true,
			BackupRetentionDays: 1,
		},
		Task: TaskOptions{
			CPU:           256,
			Memory:        512,
			ContainerName: "my-container",
			StreamPrefix:  "my-app",
		},
		Logs: LogOptions{
			RetentionDays: 7,
		},
		Events: EventOptions{
			Source:    DefaultEventSource,
			TaskCount: 1,
		},
	}
}

var (
	stackNamePattern      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]{0,127}$`)
	repositoryNamePattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*$`)
	envNamePattern        = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedEnv           = map[string]struct{}{
		"DB_HOST": {}, "DB_USER": {}, "DB_NAME": {}, "DB_PORT": {}, "DB_PASSWORD": {},
	}
	fargateMemory = map[int][2]int{
		256:  {512, 2048},
		512:  {1024, 4096},
		1024: {2048, 8192},
		2048: {4096, 16384},
		4096: {8192, 30720},
	}
)

// Validate checks the options the builder depends on. Anything else is left to
// the provisioning engine.
func (o Options) Validate() error {
	if strings.TrimSpace(o.StackName) == "" {
		return fmt.Errorf("stack name is required")
	}
	if !stackNamePattern.MatchString(o.StackName) {
		return fmt.Errorf("stack name %q must start with a letter and contain only letters, digits, and hyphens (max 128)", o.StackName)
	}
	if err := o.Features.Validate(); err != nil {
		return err
	}
	prefix, err := netip.ParsePrefix(o.Network.CIDR)
	if err != nil {
		return fmt.Errorf("network cidr: %w", err)
	}
	if !prefix.Addr().Is4() || prefix.Bits() > 24 {
		return fmt.Errorf("network cidr %s: need an IPv4 prefix of /24 or larger", o.Network.CIDR)
	}
	if o.Network.NatGateways < 1 || o.Network.NatGateways > ZoneCount {
		return fmt.Errorf("nat gateways must be between 1 and %d, got %d", ZoneCount, o.Network.NatGateways)
	}
	if !o.Features.Workload {
		return nil
	}
	if !repositoryNamePattern.MatchString(o.Repository.Name) {
		return fmt.Errorf("repository name %q is not a valid ECR name", o.Repository.Name)
	}
	if strings.TrimSpace(o.Repository.Tag) == "" {
		return fmt.Errorf("image tag is required")
	}
	if o.Database.AllocatedStorage < 20 {
		return fmt.Errorf("database storage must be at least 20 GiB, got %d", o.Database.AllocatedStorage)
	}
	if strings.TrimSpace(o.Database.Name) == "" || strings.TrimSpace(o.Database.Username) == "" {
		return fmt.Errorf("database name and username are required")
	}
	if limits, ok := fargateMemory[o.Task.CPU]; !ok {
		return fmt.Errorf("task cpu %d is not a Fargate size", o.Task.CPU)
	} else if o.Task.Memory < limits[0] || o.Task.Memory > limits[1] {
		return fmt.Errorf("task memory %d is outside %d-%d for cpu %d", o.Task.Memory, limits[0], limits[1], o.Task.CPU)
	}
	if strings.TrimSpace(o.Task.ContainerName) == "" {
		return fmt.Errorf("container name is required")
	}
	for name := range o.Task.Environment {
		if !envNamePattern.MatchString(name) {
			return fmt.Errorf("environment variable name %q is invalid", name)
		}
		if _, ok := reservedEnv[name]; ok {
			return fmt.Errorf("environment variable %s is reserved for the database binding", name)
		}
	}
	if o.Features.EventTrigger {
		if strings.TrimSpace(o.Events.Source) == "" {
			return fmt.Errorf("event source is required")
		}
		if o.Events.TaskCount < 1 {
			return fmt.Errorf("event task count must be positive, got %d", o.Events.TaskCount)
		}
	}
	return nil
}

// subnetCIDRs splits the network into 2*ZoneCount equal blocks: public
// subnets take the first half, private subnets the second.
func subnetCIDRs(cidr string) (public []string, private []string, err error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, nil, err
	}
	prefix = prefix.Masked()
	const extraBits = 2
	size := uint32(1) << (32 - prefix.Bits() - extraBits)
	base := prefix.Addr().As4()
	start := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])
	blocks := make([]string, 0, 2*ZoneCount)
	for i := uint32(0); i < 2*ZoneCount; i++ {
		n := start + i*size
		addr := netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
		blocks = append(blocks, netip.PrefixFrom(addr, prefix.Bits()+extraBits).String())
	}
	return blocks[:ZoneCount], blocks[ZoneCount:], nil
}
