package pdf

import (
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// PageResult holds the scans of every image extracted from one page.
type PageResult struct {
	PageNumber int                    `json:"page_number" yaml:"page_number"`
	Width      int                    `json:"width" yaml:"width"`
	Height     int                    `json:"height" yaml:"height"`
	Images     []*pipeline.ScanResult `json:"images" yaml:"images"`
}

// DocumentResult holds the scans for a PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename" yaml:"filename"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
	Pages      []PageResult   `json:"pages" yaml:"pages"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// ProcessingInfo contains timing information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms" yaml:"extraction_time_ms"`
	ScanTimeMs       int64 `json:"scan_time_ms" yaml:"scan_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms" yaml:"total_time_ms"`
}

// Results flattens the document into page order.
func (d *DocumentResult) Results() []*pipeline.ScanResult {
	if d == nil {
		return nil
	}
	var out []*pipeline.ScanResult
	for _, p := range d.Pages {
		out = append(out, p.Images...)
	}
	return out
}

// Decoded returns the texts of every successful scan in page order.
func (d *DocumentResult) Decoded() []string {
	var out []string
	for _, r := range d.Results() {
		if r.OK() {
			out = append(out, r.Text)
		}
	}
	return out
}
