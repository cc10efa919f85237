// Package pdf extracts embedded images from PDF documents and scans them for
// QR codes.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ExtractImages writes the embedded images of the selected pages to a
// scratch directory with pdfcpu and decodes them back, keyed by 1-based page
// number. An empty pageRange selects every page.
func ExtractImages(filename, pageRange string) (map[int][]image.Image, error) {
	pages, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	scratch, err := os.MkdirTemp("", "qrscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := api.ExtractImagesFile(filename, scratch, pageSelection(pages), nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	images, err := collectExtractedImages(scratch)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return images, nil
}

// pageSelection converts page numbers to pdfcpu's selection syntax. Nil
// selects all pages.
func pageSelection(pages []int) []string {
	if len(pages) == 0 {
		return nil
	}
	sel := make([]string, len(pages))
	for i, p := range pages {
		sel[i] = strconv.Itoa(p)
	}
	return sel
}

// PageCount returns the number of pages in a PDF file.
func PageCount(filename string) (int, error) {
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// collectExtractedImages decodes the files pdfcpu wrote to dir and groups
// them by page. Files are visited in name order, so images on a page keep the
// order pdfcpu numbered them in. Unparseable names and undecodable files are
// skipped.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	entries, err := os.ReadDir(dir) // sorted by name
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]image.Image)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		page, err := parsePageFromFilename(e.Name())
		if err != nil {
			continue
		}
		img, err := decodeFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		byPage[page] = append(byPage[page], img)
	}
	return byPage, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path inside our scratch dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return utils.DecodeImage(f)
}

// parsePageFromFilename reads the page number from an extracted image name.
// pdfcpu names images <base>_<page>_<id>.<ext>; page_<page>_image_<n>.<ext>
// is accepted as well.
func parsePageFromFilename(name string) (int, error) {
	fields := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "_")
	if len(fields) < 3 {
		return 0, errors.New("invalid filename format")
	}

	idx := len(fields) - 2
	if fields[0] == "page" {
		idx = 1
	}
	page, err := strconv.Atoi(fields[idx])
	if err != nil || page < 1 {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}

// ParsePageRange parses a comma separated list of pages and inclusive ranges,
// e.g. "1-3,7". The result is sorted and free of duplicates. Blank input
// selects every page and yields nil.
func ParsePageRange(expr string) ([]int, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	var pages []int
	for _, tok := range strings.Split(expr, ",") {
		from, to, err := parseRangeToken(strings.TrimSpace(tok))
		if err != nil {
			return nil, err
		}
		for p := from; p <= to; p++ {
			pages = append(pages, p)
		}
	}
	slices.Sort(pages)
	return slices.Compact(pages), nil
}

// parseRangeToken parses "n" or "a-b" into an inclusive interval.
func parseRangeToken(tok string) (int, int, error) {
	lo, hi, isRange := strings.Cut(tok, "-")
	if !isRange {
		p, err := strconv.Atoi(tok)
		if err != nil || p < 1 {
			return 0, 0, fmt.Errorf("invalid page number: %s", tok)
		}
		return p, p, nil
	}
	if strings.Contains(hi, "-") {
		return 0, 0, fmt.Errorf("invalid range format: %s", tok)
	}

	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || from < 1 {
		return 0, 0, fmt.Errorf("invalid start page: %s", lo)
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end page: %s", hi)
	}
	if from > to {
		return 0, 0, fmt.Errorf("start page %d greater than end page %d", from, to)
	}
	return from, to, nil
}

// CheckPageRange reports pages that lie beyond a document of total pages.
func CheckPageRange(pages []int, total int) error {
	if len(pages) == 0 {
		return nil
	}
	if last := pages[len(pages)-1]; last > total {
		return fmt.Errorf("page %d out of range (document has %d pages)", last, total)
	}
	return nil
}
