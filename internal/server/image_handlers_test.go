package server

import (
	"bytes"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func TestScanImage_JSON(t *testing.T) {
	server := newTestServer(t, nil)
	req := multipartRequest(t, "/api/v1/scan", "image", "hello.png", testutil.QRFixturePNG(t, "hello"), nil)

	w := serve(server, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var response ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.RequestID)
	require.NotNil(t, response.Result)
	assert.Equal(t, "hello", response.Result.Text)
	assert.Equal(t, pipeline.SourceCore, response.Result.Source)
	assert.Equal(t, 1, response.Result.Version)
	assert.Equal(t, 290, response.Result.Image.Width)
	assert.Len(t, response.Result.Finder, 3)
}

func TestScanImage_Formats(t *testing.T) {
	server := newTestServer(t, nil)
	fixture := testutil.QRFixturePNG(t, "formats")

	t.Run("text", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "a.png", fixture, map[string]string{"format": "text"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.Contains(t, w.Body.String(), "formats")
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("csv", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan?format=csv", "image", "a.png", fixture, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Contains(t, rows[1], "formats")
	})

	t.Run("yaml", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "a.png", fixture, map[string]string{"format": "yaml"}))
		require.Equal(t, http.StatusOK, w.Code)
		var decoded []map[string]any
		require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, "formats", decoded[0]["text"])
	})

	t.Run("overlay", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "a.png", fixture, map[string]string{"format": "overlay", "color": "#00ff00"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 290, img.Bounds().Dx())
	})

	t.Run("overlay bad colour", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "a.png", fixture, map[string]string{"format": "overlay", "color": "green"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "a.png", fixture, map[string]string{"format": "xml"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown output format")
	})
}

func TestScanImage_OverlayDisabled(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.OverlayEnabled = false })
	req := multipartRequest(t, "/api/v1/scan", "image", "a.png", testutil.QRFixturePNG(t, "x"), map[string]string{"format": "overlay"})
	w := serve(server, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestScanImage_Errors(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.MaxUploadMB = 1 })

	t.Run("no QR code", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "blank.png", blankPNG(t), nil))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, pipeline.KindNoQRCodeFound, response.Kind)
		assert.NotEmpty(t, response.RequestID)
		assert.NotEmpty(t, response.Error)
	})

	t.Run("missing file", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "", "", nil, map[string]string{"format": "json"}))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No image file provided")
	})

	t.Run("not an image", func(t *testing.T) {
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "a.png", []byte("plain text"), nil))
		require.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, pipeline.KindInvalidImage, response.Kind)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := serve(server, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, 2*1024*1024)
		_, err := rand.Read(big)
		require.NoError(t, err)
		w := serve(server, multipartRequest(t, "/api/v1/scan", "image", "big.png", big, nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := serve(server, httptest.NewRequest(http.MethodGet, "/api/v1/scan", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
