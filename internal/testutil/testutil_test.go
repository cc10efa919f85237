package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "go.mod"))
	assert.DirExists(t, filepath.Join(root, "internal", "testutil"))
}

func TestEnsureDir(t *testing.T) {
	testDir := filepath.Join(CreateTempDir(t), "test", "nested", "dir")

	require.NoError(t, EnsureDir(testDir))
	assert.DirExists(t, testDir)
	require.NoError(t, EnsureDir(testDir))
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, CreateTempDir(t), "a/b.txt", []byte("x"))
	assert.FileExists(t, path)

	data, err := os.ReadFile(path) //nolint:gosec // G304: test path
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
