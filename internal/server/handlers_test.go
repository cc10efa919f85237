package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{"GET request success", http.MethodGet, http.StatusOK, true},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed, false},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if !tt.checkResponse {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, version.Version, response.Version)
			assert.NotEmpty(t, response.Time)
			assert.NotEmpty(t, response.Uptime)
			assert.Positive(t, response.Memory.Goroutines)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_HealthReportsScans(t *testing.T) {
	server := newTestServer(t, nil)
	w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "blank.png", blankPNG(t), nil))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.Scans.Scans)
	assert.Equal(t, int64(1), response.Scans.Failures[pipeline.KindNoQRCodeFound])
}

func TestServer_VersionHandler(t *testing.T) {
	server := newTestServer(t, nil)

	w := serve(server, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var response VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, version.Version, response.Version)
	assert.Equal(t, version.Get().GitCommit, response.GitCommit)
	assert.NotEmpty(t, response.GoVersion)

	w = serve(server, httptest.NewRequest(http.MethodDelete, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusForKind(t *testing.T) {
	tests := map[string]int{
		pipeline.KindNoQRCodeFound:           http.StatusUnprocessableEntity,
		pipeline.KindUnsupportedVersion:      http.StatusUnprocessableEntity,
		pipeline.KindNoMaskID:                http.StatusUnprocessableEntity,
		pipeline.KindUnsupportedEncodingMode: http.StatusUnprocessableEntity,
		pipeline.KindMalformedBitstream:      http.StatusUnprocessableEntity,
		pipeline.KindInvalidImage:            http.StatusBadRequest,
		pipeline.KindCanceled:                http.StatusServiceUnavailable,
		pipeline.KindInternal:                http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusForKind(kind), kind)
	}
}

func TestRequestFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scan", nil)
	assert.Equal(t, formatJSON, requestFormat(req))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/scan?format=CSV", nil)
	assert.Equal(t, "csv", requestFormat(req))
}

func TestWriteUploadError(t *testing.T) {
	server := &Server{}

	w := httptest.NewRecorder()
	server.writeUploadError(w, &http.MaxBytesError{Limit: 10}, "bad form")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	server.writeUploadError(w, errors.New("unexpected EOF"), "bad form")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "bad form", response.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := serve(server, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "qrscan_http_requests_total"))
	assert.True(t, strings.Contains(body, "qrscan_websocket_connections"))
}

func TestNewServer_InvalidPipeline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverlayColor = "not-a-colour"
	_, err := NewServer(cfg)
	require.Error(t, err)
}
