package support

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// aPDFWithQRPages writes a PDF with one QR page per comma separated text.
func (testCtx *TestContext) aPDFWithQRPages(name, contents string) error {
	texts := strings.Split(contents, ",")
	pages := make([][]image.Image, len(texts))
	for i, text := range texts {
		img, err := testutil.GenerateQR(testutil.DefaultQRConfig(strings.TrimSpace(text)))
		if err != nil {
			return err
		}
		pages[i] = []image.Image{img}
	}
	data, err := testutil.EncodePDF(pages)
	if err != nil {
		return fmt.Errorf("failed to build PDF: %w", err)
	}
	return os.WriteFile(testCtx.path(name), data, 0o600)
}

func (testCtx *TestContext) documentResult() (*pdf.DocumentResult, error) {
	var doc pdf.DocumentResult
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &doc); err != nil {
		return nil, fmt.Errorf("output is not a document result: %w", err)
	}
	return &doc, nil
}

func (testCtx *TestContext) theDocumentShouldHavePages(total int) error {
	doc, err := testCtx.documentResult()
	if err != nil {
		return err
	}
	if doc.TotalPages != total {
		return fmt.Errorf("expected %d total pages, got %d", total, doc.TotalPages)
	}
	return nil
}

func (testCtx *TestContext) pagesShouldBeScanned(scanned int) error {
	doc, err := testCtx.documentResult()
	if err != nil {
		return err
	}
	if len(doc.Pages) != scanned {
		return fmt.Errorf("expected %d scanned pages, got %d", scanned, len(doc.Pages))
	}
	return nil
}

func (testCtx *TestContext) theDocumentShouldDecodeTo(expected string) error {
	doc, err := testCtx.documentResult()
	if err != nil {
		return err
	}
	got := strings.Join(doc.Decoded(), ",")
	if got != expected {
		return fmt.Errorf("expected decoded %q, got %q", expected, got)
	}
	return nil
}

// RegisterPDFSteps registers the PDF fixture and result steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with QR pages "([^"]*)"$`, testCtx.aPDFWithQRPages)
	sc.Step(`^the document should have (\d+) pages$`, testCtx.theDocumentShouldHavePages)
	sc.Step(`^(\d+) pages? should be scanned$`, testCtx.pagesShouldBeScanned)
	sc.Step(`^the document should decode to "([^"]*)"$`, testCtx.theDocumentShouldDecodeTo)
}
