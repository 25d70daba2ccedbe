// Package version reports build metadata set with -ldflags, falling back to
// the module information embedded by the Go toolchain.
package version

import "runtime/debug"

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/msomdec/usergraph/internal/version.version=v1.2.0"
var (
	version   = ""
	buildDate = "unknown"
	gitCommit = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Get returns the build metadata.
func Get() Info {
	info := Info{Version: version, BuildDate: buildDate, GitCommit: gitCommit}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	return info
}
