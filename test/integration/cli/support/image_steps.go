package support

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func (testCtx *TestContext) writeQR(name string, cfg testutil.QRConfig) error {
	img, err := testutil.GenerateQR(cfg)
	if err != nil {
		return err
	}
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return imaging.Save(img, path)
}

func (testCtx *TestContext) aQRImageEncoding(name, content string) error {
	return testCtx.writeQR(name, testutil.DefaultQRConfig(content))
}

func (testCtx *TestContext) aRotatedQRImageEncoding(name, content string, degrees int) error {
	cfg := testutil.DefaultQRConfig(content)
	cfg.Margin = 40
	cfg.Rotation = float64(degrees)
	return testCtx.writeQR(name, cfg)
}

func (testCtx *TestContext) aBlankImage(name string) error {
	return imaging.Save(imaging.New(240, 240, image.White.C), testCtx.path(name))
}

func (testCtx *TestContext) aFileContaining(name, content string) error {
	path := testCtx.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// aDirectoryWithQRImages creates one image per table row. The table has
// "file" and "content" columns.
func (testCtx *TestContext) aDirectoryWithQRImages(dir string, table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("table needs a header and at least one row")
	}
	for _, row := range table.Rows[1:] {
		if len(row.Cells) != 2 {
			return fmt.Errorf("expected 2 cells per row, got %d", len(row.Cells))
		}
		name := filepath.Join(dir, row.Cells[0].Value)
		if err := testCtx.aQRImageEncoding(name, row.Cells[1].Value); err != nil {
			return err
		}
	}
	return nil
}

// scanResults decodes the JSON output of the image or batch commands.
func (testCtx *TestContext) scanResults() ([]pipeline.ScanResult, error) {
	out := strings.TrimSpace(testCtx.LastStdout)
	switch {
	case strings.HasPrefix(out, "["):
		var results []pipeline.ScanResult
		err := json.Unmarshal([]byte(out), &results)
		return results, err
	case strings.Contains(out, `"images"`):
		var doc struct {
			Images []pipeline.ScanResult `json:"images"`
		}
		err := json.Unmarshal([]byte(out), &doc)
		return doc.Images, err
	default:
		var res pipeline.ScanResult
		err := json.Unmarshal([]byte(out), &res)
		return []pipeline.ScanResult{res}, err
	}
}

func (testCtx *TestContext) theDecodedTextShouldBe(expected string) error {
	results, err := testCtx.scanResults()
	if err != nil {
		return fmt.Errorf("output is not a scan result: %w", err)
	}
	if len(results) != 1 {
		return fmt.Errorf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != expected {
		return fmt.Errorf("expected text %q, got %q", expected, results[0].Text)
	}
	return nil
}

func (testCtx *TestContext) theDecodedTextsShouldBe(expected string) error {
	results, err := testCtx.scanResults()
	if err != nil {
		return fmt.Errorf("output is not a scan result: %w", err)
	}
	want := strings.Split(expected, ",")
	got := make(map[string]int)
	for _, r := range results {
		if r.Error == nil {
			got[r.Text]++
		}
	}
	for _, w := range want {
		if got[w] == 0 {
			return fmt.Errorf("text %q not decoded; results: %+v", w, got)
		}
		got[w]--
	}
	return nil
}

func (testCtx *TestContext) theEncodingModeShouldBe(mode string) error {
	results, err := testCtx.scanResults()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Mode != mode {
			return fmt.Errorf("expected mode %s, got %s", mode, r.Mode)
		}
	}
	return nil
}

func (testCtx *TestContext) theResultSourceShouldBe(source string) error {
	results, err := testCtx.scanResults()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Source != source {
			return fmt.Errorf("expected source %s, got %s", source, r.Source)
		}
	}
	return nil
}

func (testCtx *TestContext) theErrorKindShouldBe(kind string) error {
	results, err := testCtx.scanResults()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != nil && r.Error.Kind == kind {
			return nil
		}
	}
	return fmt.Errorf("no result failed with kind %s: %s", kind, testCtx.LastStdout)
}

func (testCtx *TestContext) theOverlayImageShouldBeCreatedIn(dir string) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.path(dir), "*_overlay.png"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no overlay images in %s", dir)
	}
	return nil
}

// RegisterImageSteps registers the image fixture and result steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.aQRImageEncoding)
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)" rotated by (\d+) degrees$`, testCtx.aRotatedQRImageEncoding)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^a directory "([^"]*)" with QR images:$`, testCtx.aDirectoryWithQRImages)

	sc.Step(`^the decoded text should be "([^"]*)"$`, testCtx.theDecodedTextShouldBe)
	sc.Step(`^the decoded texts should include "([^"]*)"$`, testCtx.theDecodedTextsShouldBe)
	sc.Step(`^the encoding mode should be "([^"]*)"$`, testCtx.theEncodingModeShouldBe)
	sc.Step(`^the result source should be "([^"]*)"$`, testCtx.theResultSourceShouldBe)
	sc.Step(`^the error kind should be "([^"]*)"$`, testCtx.theErrorKindShouldBe)
	sc.Step(`^an overlay image should be created in "([^"]*)"$`, testCtx.theOverlayImageShouldBeCreatedIn)
}
