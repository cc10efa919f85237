package batch

import (
	"encoding/json"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// jsonBatch is the JSON document for a batch run.
type jsonBatch struct {
	Images []*pipeline.ScanResult   `json:"images"`
	Stats  pipeline.ParallelStats   `json:"stats"`
	Scans  pipeline.ProfileSnapshot `json:"profile"`
}

// formatBatchResults formats the batch results. JSON wraps the per-file
// results with run statistics; the other formats are the pipeline's own.
func formatBatchResults(r *Result, format string) (string, error) {
	if strings.EqualFold(format, pipeline.FormatJSON) {
		return formatJSON(r)
	}
	results := r.Results
	if results == nil {
		results = []*pipeline.ScanResult{}
	}
	return pipeline.Format(results, format)
}

func formatJSON(r *Result) (string, error) {
	doc := jsonBatch{Images: r.Results, Stats: r.Stats(), Scans: r.Profile}
	if doc.Images == nil {
		doc.Images = []*pipeline.ScanResult{}
	}
	bts, err := json.MarshalIndent(doc, "", "  ")
	return string(bts), err
}
