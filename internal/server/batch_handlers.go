package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"runtime"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// BatchScanRequest carries base64 encoded images in a JSON body.
type BatchScanRequest struct {
	Images []BatchImageRequest `json:"images"`
}

// BatchImageRequest is a single image in a batch request.
type BatchImageRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// BatchScanResponse is the response for batch scanning.
type BatchScanResponse struct {
	RequestID string                 `json:"request_id"`
	Results   []BatchScanResult      `json:"results"`
	Summary   BatchScanSummary       `json:"summary"`
	Stats     pipeline.ParallelStats `json:"stats"`
}

// BatchScanResult pairs a request name with its scan.
type BatchScanResult struct {
	Name   string               `json:"name"`
	Result *pipeline.ScanResult `json:"result"`
}

// BatchScanSummary provides summary statistics for batch processing.
type BatchScanSummary struct {
	TotalItems int `json:"total_items"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// scanBatchHandler scans several images on the pipeline worker pool. Per
// image failures are reported inline and never fail the request.
func (s *Server) scanBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	var req BatchScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeUploadError(w, err, fmt.Sprintf("Failed to parse JSON request: %v", err))
		return
	}
	if len(req.Images) == 0 {
		s.writeErrorResponse(w, "No images provided in batch request", http.StatusBadRequest)
		return
	}
	if len(req.Images) > s.maxBatchItems {
		s.writeErrorResponse(w, fmt.Sprintf("Batch size too large (maximum %d items)", s.maxBatchItems), http.StatusBadRequest)
		return
	}

	requestID := newRequestID()
	results := make([]BatchScanResult, len(req.Images))
	var images []image.Image
	var slots []int
	for i, item := range req.Images {
		results[i].Name = item.Name
		uploadSizeBytes.Observe(float64(len(item.Data)))
		img, err := utils.DecodeImage(bytes.NewReader(item.Data))
		if err != nil {
			results[i].Result = &pipeline.ScanResult{
				Error: &pipeline.ScanError{Kind: pipeline.ErrorKind(err), Message: err.Error()},
			}
			continue
		}
		images = append(images, img)
		slots = append(slots, i)
	}

	ctx, cancel := s.scanContext(r)
	defer cancel()

	workers := min(runtime.NumCPU(), len(images))
	start := time.Now()
	if len(images) > 0 {
		scanned, err := s.pipeline.ProcessImagesParallel(ctx, images, pipeline.ParallelConfig{MaxWorkers: workers})
		if scanned == nil && err != nil {
			s.writeScanError(w, requestID, err)
			return
		}
		for j, res := range scanned {
			observeScan(res)
			results[slots[j]].Result = res
		}
	}

	summary := BatchScanSummary{TotalItems: len(results)}
	flat := make([]*pipeline.ScanResult, len(results))
	for i, br := range results {
		flat[i] = br.Result
		if br.Result.OK() {
			summary.Successful++
		} else {
			summary.Failed++
			scanFailuresTotal.WithLabelValues(br.Result.Error.Kind).Inc()
		}
	}

	writeJSON(w, http.StatusOK, BatchScanResponse{
		RequestID: requestID,
		Results:   results,
		Summary:   summary,
		Stats:     pipeline.CalculateParallelStats(flat, time.Since(start), workers),
	})
}
