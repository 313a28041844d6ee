// Where: internal/infra/config/env.go
// What: Environment overrides for config values.
// Why: Let CI select stack, snapshot, and AWS target without editing efstack.yaml.
package config

import (
	"os"
	"strings"

	"github.com/poruru/efstack/internal/constants"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overrides config values with non-empty environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		value, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(value)
	}
	setString(&c.StackName, get(constants.EnvStackName))
	setString(&c.Snapshot, get(constants.EnvSnapshot))
	setString(&c.Region, get(constants.EnvRegion))
	if c.Region == "" {
		c.Region = get(constants.EnvAWSRegion)
	}
	setString(&c.Profile, get(constants.EnvAWSProfile))
	setString(&c.Endpoint, get(constants.EnvEndpoint))
	setString(&c.Deploy.ArtifactBucket, get(constants.EnvArtifactBucket))
	setString(&c.Deploy.LedgerTable, get(constants.EnvLedgerTable))
}
