// Where: internal/version/version.go
// What: Version information retrieval.
// Why: Report the release version or the VCS revision the binary was built from.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set with -ldflags "-X github.com/poruru/efstack/internal/version.Version=v1.2.3".
var Version = ""

var readBuildInfo = debug.ReadBuildInfo

// GetVersion returns Version when set, otherwise the short VCS revision with
// a "(dirty)" suffix for modified trees, or "dev" without build info.
func GetVersion() string {
	if Version != "" {
		return Version
	}
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}

	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		return "dev"
	}
	if modified {
		return fmt.Sprintf("%s (dirty)", revision)
	}
	return revision
}
