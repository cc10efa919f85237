package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	b := Get()
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.NotEmpty(t, b.GitCommit)
	assert.NotEmpty(t, b.BuildDate)

	v, commit, date := Info()
	assert.Equal(t, b.Version, v)
	assert.Equal(t, b.GitCommit, commit)
	assert.Equal(t, b.BuildDate, date)
}

func TestFromVCS(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "GOOS", Value: "linux"},
	}

	b := fromVCS(BuildInfo{GitCommit: "unknown", BuildDate: "unknown"}, settings)
	assert.Equal(t, "0123456789ab", b.GitCommit)
	assert.Equal(t, "2026-01-02T03:04:05Z", b.BuildDate)

	// ldflags values win
	b = fromVCS(BuildInfo{GitCommit: "abc", BuildDate: "today"}, settings)
	assert.Equal(t, "abc", b.GitCommit)
	assert.Equal(t, "today", b.BuildDate)
}

func TestString(t *testing.T) {
	b := BuildInfo{Version: "v1.0.0", GitCommit: "abc", BuildDate: "today", GoVersion: "go1.25.0"}
	assert.Equal(t, "qrscan v1.0.0 (commit abc, built today, go1.25.0)", b.String())
}
