// Package buildinfo reports the version stamped into finledger binaries.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Release builds override these with -ldflags "-X finledger/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the resolved build metadata of the running binary.
type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

// Current returns the ldflags values, filling whatever was left unset from
// the VCS stamp the go tool embeds in module builds.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fill(info, bi)
}

func fill(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// String formats the info for --version output and startup logs.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Version, commit, i.Date)
}
