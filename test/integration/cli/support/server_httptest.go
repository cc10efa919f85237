package support

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

// HTTPTestServerWrapper wraps an httptest.Server running the scan routes.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// NewHTTPTestServer starts the scan routes on a loopback listener.
func NewHTTPTestServer(config server.Config) (*HTTPTestServerWrapper, error) {
	s, err := server.NewServer(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return &HTTPTestServerWrapper{
		Server:     httptest.NewServer(s.Handler()),
		TestServer: s,
	}, nil
}

// Close shuts the listener down.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
}

// URL returns the base URL.
func (w *HTTPTestServerWrapper) URL() string {
	return w.Server.URL
}

// WebSocketURL returns the ws:// URL for path.
func (w *HTTPTestServerWrapper) WebSocketURL(path string) string {
	return "ws" + strings.TrimPrefix(w.Server.URL, "http") + path
}

// Upload posts file as the multipart field with extra form values.
func (w *HTTPTestServerWrapper) Upload(path, field, file string, values map[string]string) (*http.Response, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filepath.Base(file))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, w.Server.URL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return w.Server.Client().Do(req)
}

// Do sends a request with an optional body and content type.
func (w *HTTPTestServerWrapper) Do(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, w.Server.URL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return w.Server.Client().Do(req)
}
