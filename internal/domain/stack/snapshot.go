// Where: internal/domain/stack/snapshot.go
// What: Snapshot presets and the feature switches they resolve to.
// Why: Model every incremental version of the stack as one parameterized builder.
package stack

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidFeatures = errors.New("invalid feature combination")

// Snapshot names one incremental version of the stack definition.
type Snapshot string

const (
	SnapshotNetwork    Snapshot = "network"
	SnapshotCluster    Snapshot = "cluster"
	SnapshotDatabase   Snapshot = "database"
	SnapshotRepository Snapshot = "repository"
	SnapshotEvents     Snapshot = "events"

	DefaultSnapshot = SnapshotEvents
)

// Features switches optional parts of the declaration on or off.
type Features struct {
	// Cluster declares the ECS cluster bound to the network.
	Cluster bool
	// Workload declares the execution role, security groups, database,
	// task definition, and the database ingress rule.
	Workload bool
	// CreateRepository creates the image repository instead of looking it up.
	CreateRepository bool
	// DestroyOnDelete applies non-retaining deletion policies to the
	// database, log group, secret, and image repository.
	DestroyOnDelete bool
	// EventTrigger declares the event rule, its identity, and the task target.
	EventTrigger bool
}

var snapshotFeatures = map[Snapshot]Features{
	SnapshotNetwork:  {},
	SnapshotCluster:  {Cluster: true},
	SnapshotDatabase: {Cluster: true, Workload: true},
	SnapshotRepository: {
		Cluster:          true,
		Workload:         true,
		CreateRepository: true,
		DestroyOnDelete:  true,
	},
	SnapshotEvents: {
		Cluster:          true,
		Workload:         true,
		CreateRepository: true,
		DestroyOnDelete:  true,
		EventTrigger:     true,
	},
}

// Snapshots returns every known snapshot in composition order.
func Snapshots() []Snapshot {
	return []Snapshot{
		SnapshotNetwork,
		SnapshotCluster,
		SnapshotDatabase,
		SnapshotRepository,
		SnapshotEvents,
	}
}

// ParseSnapshot resolves a snapshot name; an empty name selects the default.
func ParseSnapshot(name string) (Snapshot, error) {
	trimmed := Snapshot(strings.ToLower(strings.TrimSpace(name)))
	if trimmed == "" {
		return DefaultSnapshot, nil
	}
	if _, ok := snapshotFeatures[trimmed]; !ok {
		known := make([]string, 0, len(snapshotFeatures))
		for s := range snapshotFeatures {
			known = append(known, string(s))
		}
		sort.Strings(known)
		return "", fmt.Errorf("unknown snapshot %q (expected one of %s)", name, strings.Join(known, ", "))
	}
	return trimmed, nil
}

// Features returns the preset of the snapshot.
func (s Snapshot) Features() Features {
	return snapshotFeatures[s]
}

// Validate rejects combinations where a part is enabled without the parts it references.
func (f Features) Validate() error {
	if f.Workload && !f.Cluster {
		return fmt.Errorf("%w: workload requires the cluster", ErrInvalidFeatures)
	}
	if f.EventTrigger && !f.Workload {
		return fmt.Errorf("%w: event trigger requires the workload", ErrInvalidFeatures)
	}
	return nil
}

// Names lists the enabled features.
func (f Features) Names() []string {
	var names []string
	if f.Cluster {
		names = append(names, "cluster")
	}
	if f.Workload {
		names = append(names, "workload")
	}
	if f.CreateRepository {
		names = append(names, "create-repository")
	}
	if f.DestroyOnDelete {
		names = append(names, "destroy-on-delete")
	}
	if f.EventTrigger {
		names = append(names, "event-trigger")
	}
	return names
}
