package server

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func pdfFixture(t *testing.T, contents ...string) []byte {
	t.Helper()
	path := testutil.WriteQRPDF(t, t.TempDir(), "codes.pdf", contents...)
	data, err := os.ReadFile(path) //nolint:gosec // G304: test fixture
	require.NoError(t, err)
	return data
}

func TestScanPDF(t *testing.T) {
	server := newTestServer(t, nil)
	data := pdfFixture(t, "first", "second")

	t.Run("all pages", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", data, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var response PDFResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.RequestID)
		require.NotNil(t, response.Document)
		assert.Equal(t, 2, response.Document.TotalPages)
		assert.Equal(t, []string{"first", "second"}, response.Document.Decoded())
	})

	t.Run("page range", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", data, map[string]string{"pages": "2"}))
		require.Equal(t, http.StatusOK, w.Code)

		var response PDFResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, []string{"second"}, response.Document.Decoded())
		assert.Equal(t, 2, response.Document.Pages[0].PageNumber)
	})

	t.Run("text", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", data, map[string]string{"format": "text"}))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Total Pages: 2")
		assert.Contains(t, body, "Page 1 (290x290):")
		assert.Contains(t, body, "Image 1: first")
	})

	t.Run("csv", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", data, map[string]string{"format": "csv"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "second")
	})
}

func TestScanPDF_Errors(t *testing.T) {
	server := newTestServer(t, nil)

	t.Run("missing file", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "", "", nil, map[string]string{"pages": "1"}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No PDF file provided")
	})

	t.Run("bad page range", func(t *testing.T) {
		data := pdfFixture(t, "x")
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", data, map[string]string{"pages": "3-1"}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid page range")
	})

	t.Run("not a pdf", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", []byte("not a pdf"), nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unavailable", func(t *testing.T) {
		bare := newServer(DefaultConfig(), server.pipeline, nil)
		w := serve(bare, multipartRequest(t, "/api/v1/scan/pdf", "pdf", "codes.pdf", []byte("%PDF"), nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
