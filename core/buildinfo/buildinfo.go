// Package buildinfo carries version data stamped in at link time:
//
//	go build -ldflags "-X github.com/m3rciful/sharebot/core/buildinfo.Version=v1.2.3
//	  -X github.com/m3rciful/sharebot/core/buildinfo.Commit=abcdef0
//	  -X github.com/m3rciful/sharebot/core/buildinfo.Date=2026-03-01T12:00:00Z"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC 3339.
	Date = ""
)

func init() {
	if Commit != "local" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value[:min(len(s.Value), 7)]
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

// String formats the build for a version banner.
func String(name string) string {
	s := fmt.Sprintf("%s %s (commit %s", name, Version, Commit)
	if Date != "" {
		s += ", built " + Date
	}
	return s + ")"
}
