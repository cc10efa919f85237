package cmd

import (
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

type batchDoc struct {
	Images []pipeline.ScanResult `json:"images"`
	Stats  struct {
		TotalImages int `json:"total_images"`
	} `json:"stats"`
}

func TestBatchCommandDirectory(t *testing.T) {
	dir := isolate(t)
	testutil.WriteQRFixture(t, dir, "one.png", "ONE")
	testutil.WriteQRFixture(t, dir, "two.png", "TWO")

	code, stdout, stderr := runCLI(t, "batch", dir, "--format", "json")
	require.Equal(t, 0, code, stderr)

	var doc batchDoc
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	require.Len(t, doc.Images, 2)
	texts := []string{doc.Images[0].Text, doc.Images[1].Text}
	assert.ElementsMatch(t, []string{"ONE", "TWO"}, texts)
}

func TestBatchCommandRecursiveAndPatterns(t *testing.T) {
	dir := isolate(t)
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	testutil.WriteQRFixture(t, dir, "top.png", "TOP")
	testutil.WriteQRFixture(t, sub, "deep.png", "DEEP")
	testutil.WriteQRFixture(t, sub, "deep_thumb.png", "THUMB")

	code, stdout, stderr := runCLI(t, "batch", dir, "-r", "--exclude", "*_thumb.png", "-f", "json")
	require.Equal(t, 0, code, stderr)

	var doc batchDoc
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	texts := make([]string, 0, len(doc.Images))
	for _, r := range doc.Images {
		texts = append(texts, r.Text)
	}
	assert.ElementsMatch(t, []string{"TOP", "DEEP"}, texts)
}

func TestBatchCommandNoImages(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	code, _, stderr := runCLI(t, "batch", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no image files found")
}

func TestBatchCommandFailuresSetExitStatus(t *testing.T) {
	dir := isolate(t)
	testutil.WriteQRFixture(t, dir, "good.png", "GOOD")
	testutil.SaveImage(t, testutil.CreateTestImage(160, 160, color.White), filepath.Join(dir, "blank.png"))

	code, stdout, stderr := runCLI(t, "batch", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "GOOD")
	assert.Contains(t, stderr, "1 of 2 input(s) failed to decode")

	code, _, stderr = runCLI(t, "batch", dir, "--continue-on-error")
	assert.Equal(t, 0, code, stderr)
}

func TestBatchCommandStatsAndOutputFile(t *testing.T) {
	dir := isolate(t)
	testutil.WriteQRFixture(t, dir, "s.png", "STATS")
	out := filepath.Join(dir, "out.csv")

	code, stdout, stderr := runCLI(t, "batch", filepath.Join(dir, "s.png"), "--stats", "-o", out, "-f", "csv")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Results written to "+out)
	assert.Contains(t, stderr, "Processing Statistics:")
	assert.Contains(t, stderr, "Total images: 1")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "STATS")
}

func TestBatchCommandQuiet(t *testing.T) {
	dir := isolate(t)
	testutil.WriteQRFixture(t, dir, "q.png", "QUIET")

	code, _, stderr := runCLI(t, "batch", dir, "--stats", "--quiet")
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, stderr, "Processing Statistics:")
}
