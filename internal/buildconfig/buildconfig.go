// Package buildconfig reports the build's version. The linker sets version
// and commit:
//
//	go build -ldflags "-X github.com/Harshitk-cp/swarm/internal/buildconfig.version=v0.3.0 \
//	  -X github.com/Harshitk-cp/swarm/internal/buildconfig.commit=$(git rev-parse --short HEAD)"
package buildconfig

import (
	"runtime"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

func Version() string {
	return version
}

// Commit falls back to the VCS revision stamped by the go tool when not set
// by the linker.
func Commit() string {
	if commit != "unknown" {
		return commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return commit
}

func Get() Info {
	return Info{
		Version:   Version(),
		Commit:    Commit(),
		GoVersion: runtime.Version(),
	}
}
