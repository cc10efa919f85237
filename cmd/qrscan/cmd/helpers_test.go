package cmd

import (
	"bytes"
	"context"
	"testing"
)

// runCLI executes the command tree in-process from an isolated working
// directory and home, so no stray qrscan.yaml is picked up.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// isolate moves the test into a fresh directory with an empty home.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return dir
}
