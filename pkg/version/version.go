// Package version holds build metadata injected at link time with
// -ldflags "-X github.com/Sumatoshi-tech/sprintstats/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "<unknown>"

// Build metadata.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// Init fills unset metadata from the module build info, so binaries built
// with `go install` still report their version and VCS revision.
func Init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for humans.
func String() string {
	return fmt.Sprintf("sprintstats %s (commit: %s, built: %s)", Version, Commit, Date)
}
