package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

const (
	formatJSON    = "json"
	formatOverlay = "overlay"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Memory:  common.GetMemoryStats(),
	}
	if s.pipeline != nil {
		response.Scans = s.pipeline.Stats()
	}
	writeJSON(w, http.StatusOK, response)
}

// versionHandler returns build information.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, version.Get())
}

// requestFormat reads format from the form or the query string.
func requestFormat(r *http.Request) string {
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		return formatJSON
	}
	return strings.ToLower(format)
}

// scanContext bounds a request by the configured timeout.
func (s *Server) scanContext(r *http.Request) (context.Context, context.CancelFunc) {
	if d := s.requestTimeout(); d > 0 {
		return context.WithTimeout(r.Context(), d)
	}
	return context.WithCancel(r.Context())
}

func newRequestID() string { return uuid.NewString() }

// statusForKind maps a scan error kind to an HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case pipeline.KindNoQRCodeFound,
		pipeline.KindUnsupportedVersion,
		pipeline.KindNoMaskID,
		pipeline.KindUnsupportedEncodingMode,
		pipeline.KindMalformedBitstream:
		return http.StatusUnprocessableEntity
	case pipeline.KindInvalidImage:
		return http.StatusBadRequest
	case pipeline.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeScanError reports a failed scan with its kind.
func (s *Server) writeScanError(w http.ResponseWriter, requestID string, err error) {
	kind := pipeline.ErrorKind(err)
	scanFailuresTotal.WithLabelValues(kind).Inc()
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("Scan failed", "request_id", requestID, "kind", kind, "error", err)
	} else {
		slog.Info("Scan failed", "request_id", requestID, "kind", kind, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind, RequestID: requestID})
}

// writeUploadError maps body and form errors to 413 or 400.
func (s *Server) writeUploadError(w http.ResponseWriter, err error, fallback string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, fallback, http.StatusBadRequest)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// observeScan records scan metrics for one result.
func observeScan(res *pipeline.ScanResult) {
	if res == nil {
		return
	}
	source := res.Source
	result := "success"
	if !res.OK() {
		source = "none"
		result = "failure"
	}
	scansTotal.WithLabelValues(source, result).Inc()
	scanDuration.WithLabelValues(source).Observe(time.Duration(res.TotalNs).Seconds())
}
