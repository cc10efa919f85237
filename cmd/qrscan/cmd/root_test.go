package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "qrscan", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"image", "batch", "pdf", "serve", "config", "version"} {
		assert.Contains(t, names, expected)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--help")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "qrscan finds the three finder patterns")
	assert.Contains(t, stdout, "qrscan pdf invoice.pdf --pages 1-2")
	assert.NotContains(t, stdout, "Locate and decode QR codes")
	assert.Contains(t, stdout, "Available Commands:")
	assert.Contains(t, stdout, "Usage:")
}

func TestRootCommandNoArgsShowsHelp(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Usage:")
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "--no-such-flag")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRootCommandUnknownSubcommand(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRootCommandBadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0o600))

	code, _, stderr := runCLI(t, "--config", path, "version")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error loading configuration")
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI(t, "--config", "missing.yaml", "version")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error loading configuration")
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "version")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "qrscan dev")
	assert.Contains(t, stdout, "(commit ")
}

func TestLogsGoToStderr(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--log-level", "debug", "version")
	require.Equal(t, 0, code)
	assert.NotContains(t, stdout, `"level"`)
}
