package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image/color"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// newFixtureFs lays out:
//
//	/in/a.png      "alpha"
//	/in/blank.png  white, no code
//	/in/notes.txt
//	/in/sub/b.png  "beta"
func newFixtureFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/a.png", testutil.QRFixturePNG(t, "alpha"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/blank.png",
		testutil.EncodePNG(t, testutil.CreateTestImage(120, 120, color.White)), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/notes.txt", []byte("not an image"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/sub/b.png", testutil.QRFixturePNG(t, "beta"), 0o644))
	return fs
}

func TestDiscoverImageFiles(t *testing.T) {
	fs := newFixtureFs(t)

	files, err := discoverImageFiles(fs, []string{"/in"}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.png", "/in/blank.png"}, files)

	files, err = discoverImageFiles(fs, []string{"/in"}, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.png", "/in/blank.png", "/in/sub/b.png"}, files)

	files, err = discoverImageFiles(fs, []string{"/in"}, true, []string{"a*", "b.*"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.png", "/in/sub/b.png"}, files)

	files, err = discoverImageFiles(fs, []string{"/in"}, true, nil, []string{"blank*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.png", "/in/sub/b.png"}, files)

	// Explicit files bypass the extension filter.
	files, err = discoverImageFiles(fs, []string{"/in/notes.txt", "/in/a.png"}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/notes.txt", "/in/a.png"}, files)

	files, err = discoverImageFiles(fs, nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = discoverImageFiles(fs, []string{"/missing"}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestDiscoverImageFilesDeduplicates(t *testing.T) {
	fs := newFixtureFs(t)

	files, err := discoverImageFiles(fs, []string{"/in/a.png", "/in", "/in/./a.png"}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/a.png", "/in/blank.png"}, files)
}

func TestFileFilter(t *testing.T) {
	assert.True(t, fileFilter{}.admits("/x/a.png"))
	assert.False(t, fileFilter{exclude: []string{"*.png"}}.admits("/x/a.png"))
	assert.False(t, fileFilter{include: []string{"*.jpg"}}.admits("/x/a.png"))
	assert.True(t, fileFilter{include: []string{"*.jpg", "a.*"}}.admits("/x/a.png"))
	assert.False(t, fileFilter{include: []string{"a.*"}, exclude: []string{"*.png"}}.admits("/x/a.png"))
	assert.False(t, globMatch("a.png", nil))
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Recursive = true
	cfg.Quiet = true
	return cfg
}

func TestProcessBatch_ContinueOnError(t *testing.T) {
	fs := newFixtureFs(t)

	result, err := ProcessBatch(context.Background(), fs, []string{"/in"}, testConfig())
	require.NoError(t, err)
	require.Len(t, result.Results, 3)

	assert.Equal(t, "/in/a.png", result.Results[0].Path)
	assert.Equal(t, "alpha", result.Results[0].Text)
	assert.Equal(t, "png", result.Results[0].Image.Format)
	assert.Positive(t, result.Results[0].Image.SizeBytes)

	require.NotNil(t, result.Results[1].Error)
	assert.Equal(t, pipeline.KindNoQRCodeFound, result.Results[1].Error.Kind)
	assert.Equal(t, "/in/blank.png", result.Results[1].Path)

	assert.Equal(t, "beta", result.Results[2].Text)
	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, int64(3), result.Profile.Scans)
	assert.Equal(t, 2, result.WorkerCount)
}

func TestProcessBatch_StopOnFirstFailure(t *testing.T) {
	fs := newFixtureFs(t)
	cfg := testConfig()
	cfg.ContinueOnError = false

	result, err := ProcessBatch(context.Background(), fs, []string{"/in"}, cfg)
	require.Error(t, err)
	assert.Nil(t, result)
	require.ErrorIs(t, err, locator.ErrNoQRCodeFound)
	assert.Contains(t, err.Error(), "/in/blank.png")
}

func TestProcessBatch_UnreadableInputs(t *testing.T) {
	fs := newFixtureFs(t)
	require.NoError(t, afero.WriteFile(fs, "/in/broken.png", []byte("garbage"), 0o644))

	result, err := ProcessBatch(context.Background(), fs, []string{"/in/broken.png", "/in/notes.txt", "/in/a.png"}, testConfig())
	require.NoError(t, err)
	require.Len(t, result.Results, 3)
	assert.Equal(t, pipeline.KindInvalidImage, result.Results[0].Error.Kind)
	assert.Equal(t, pipeline.KindInvalidImage, result.Results[1].Error.Kind)
	assert.Equal(t, "alpha", result.Results[2].Text)

	cfg := testConfig()
	cfg.ContinueOnError = false
	_, err = ProcessBatch(context.Background(), fs, []string{"/in/broken.png"}, cfg)
	var ipe *utils.ImageProcessingError
	require.ErrorAs(t, err, &ipe)
}

func TestProcessBatch_Errors(t *testing.T) {
	fs := newFixtureFs(t)

	_, err := ProcessBatch(context.Background(), fs, []string{}, testConfig())
	require.Error(t, err)
	assert.True(t, IsNoImages(err))

	_, err = ProcessBatch(context.Background(), fs, []string{"/nonexistent"}, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")

	cfg := testConfig()
	cfg.Brightness = 3
	_, err = ProcessBatch(context.Background(), fs, []string{"/in"}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build scan pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ProcessBatch(ctx, fs, []string{"/in"}, testConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessBatch_Overlays(t *testing.T) {
	fs := newFixtureFs(t)
	cfg := testConfig()
	cfg.OverlayDir = "/out"
	cfg.OverlayColor = "#00ff00"

	_, err := ProcessBatch(context.Background(), fs, []string{"/in"}, cfg)
	require.NoError(t, err)

	widths := map[string]int{"/out/a_overlay.png": 290, "/out/blank_overlay.png": 120, "/out/b_overlay.png": 290}
	for name, width := range widths {
		data, err := afero.ReadFile(fs, name)
		require.NoError(t, err, name)
		img, err := utils.DecodeImage(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, width, img.Bounds().Dx(), name)
	}
	assert.Equal(t, "/out/a_overlay.png", overlayPath("/out", "/in/a.png"))
}

func TestResultFormattingAndSaving(t *testing.T) {
	fs := newFixtureFs(t)
	result, err := ProcessBatch(context.Background(), fs, []string{"/in"}, testConfig())
	require.NoError(t, err)

	out, err := result.FormatResults("json")
	require.NoError(t, err)
	var doc struct {
		Images []pipeline.ScanResult    `json:"images"`
		Stats  pipeline.ParallelStats   `json:"stats"`
		Scans  pipeline.ProfileSnapshot `json:"profile"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Images, 3)
	assert.Equal(t, 2, doc.Stats.Decoded)
	assert.Equal(t, int64(1), doc.Scans.Failures[pipeline.KindNoQRCodeFound])

	out, err = result.FormatResults("csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	out, err = result.FormatResults("yaml")
	require.NoError(t, err)
	var back []pipeline.ScanResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &back))
	assert.Equal(t, "beta", back[2].Text)

	out, err = result.FormatResults("text")
	require.NoError(t, err)
	assert.Equal(t, "/in/a.png: alpha\n/in/blank.png: ERROR no_qr_code_found: "+
		result.Results[1].Error.Message+"\n/in/sub/b.png: beta", out)

	_, err = result.FormatResults("xml")
	require.ErrorIs(t, err, pipeline.ErrUnknownFormat)

	var buf bytes.Buffer
	require.NoError(t, result.SaveResults(fs, &buf, "text", "", false))
	assert.True(t, strings.HasPrefix(buf.String(), "/in/a.png: alpha"))

	buf.Reset()
	require.NoError(t, result.SaveResults(fs, &buf, "csv", "/out/results.csv", false))
	assert.Contains(t, buf.String(), "Results written to /out/results.csv")
	data, err := afero.ReadFile(fs, "/out/results.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "path,page,source"))

	buf.Reset()
	require.NoError(t, result.SaveResults(fs, &buf, "json", "/out/results.json", true))
	assert.Empty(t, buf.String())

	require.Error(t, result.SaveResults(fs, &buf, "xml", "", false))
}

func TestPrintStats(t *testing.T) {
	result := &Result{
		Results: []*pipeline.ScanResult{
			{Source: pipeline.SourceCore, Text: "a"},
			{Source: pipeline.SourceReference, Text: "b"},
			{Error: &pipeline.ScanError{Kind: pipeline.KindNoQRCodeFound}},
		},
		WorkerCount: 2,
	}

	var buf bytes.Buffer
	result.PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Total images: 3")
	assert.Contains(t, out, "Decoded: 2")
	assert.Contains(t, out, "Via reference decoder: 1")
	assert.Contains(t, out, "Failed: 1")

	buf.Reset()
	result.PrintStats(&buf, true)
	assert.Empty(t, buf.String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.ContinueOnError)
	assert.True(t, cfg.Trim)
	assert.Equal(t, pipeline.FormatText, cfg.Format)
	assert.Positive(t, cfg.Workers)

	pl, err := buildPipeline(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Workers, pl.Config().Parallel.MaxWorkers)
}
