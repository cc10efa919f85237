// Package version carries the build identity of qrscan.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Build-time variables set by ldflags:
//
//	-X github.com/MeKo-Tech/qrscan/internal/version.Version=v1.2.3
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("qrscan %s (commit %s, built %s, %s)", b.Version, b.GitCommit, b.BuildDate, b.GoVersion)
}

var (
	once sync.Once
	info BuildInfo
)

// Get returns the build information. Commit and date not set by ldflags
// fall back to the VCS stamp embedded by the Go toolchain.
func Get() BuildInfo {
	once.Do(func() {
		info = BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate, GoVersion: runtime.Version()}
		if bi, ok := debug.ReadBuildInfo(); ok {
			info = fromVCS(info, bi.Settings)
		}
	})
	return info
}

func fromVCS(b BuildInfo, settings []debug.BuildSetting) BuildInfo {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.GitCommit == "unknown" && s.Value != "" {
				b.GitCommit = s.Value
				if len(b.GitCommit) > 12 {
					b.GitCommit = b.GitCommit[:12]
				}
			}
		case "vcs.time":
			if b.BuildDate == "unknown" && s.Value != "" {
				b.BuildDate = s.Value
			}
		}
	}
	return b
}

// Info returns version, commit and build date.
func Info() (string, string, string) {
	b := Get()
	return b.Version, b.GitCommit, b.BuildDate
}
