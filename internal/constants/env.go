// Where: internal/constants/env.go
// What: Environment variable names.
// Why: Share override names between config loading, commands, and tests.
package constants

const (
	// Stack selection
	EnvStackName = "EFSTACK_STACK_NAME"
	EnvSnapshot  = "EFSTACK_SNAPSHOT"
	EnvConfig    = "EFSTACK_CONFIG"

	// AWS access
	EnvRegion     = "EFSTACK_REGION"
	EnvAWSRegion  = "AWS_REGION"
	EnvAWSProfile = "AWS_PROFILE"
	EnvEndpoint   = "EFSTACK_ENDPOINT"

	// Deploy artifacts
	EnvArtifactBucket = "EFSTACK_ARTIFACT_BUCKET"
	EnvLedgerTable    = "EFSTACK_LEDGER_TABLE"

	// Output
	EnvNoEmoji = "EFSTACK_NO_EMOJI"
)
