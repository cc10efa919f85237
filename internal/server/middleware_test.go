package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	server := &Server{corsOrigin: "https://app.example"}
	called := false
	handler := server.corsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("preflight", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodOptions, "/api/v1/scan", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, called)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("request", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/api/v1/scan", nil))
		assert.True(t, called)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:80", "10.0.0.1"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 10.0.0.3 "}, "1.2.3.4:80", "10.0.0.3"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.4"}, "1.2.3.4:80", "10.0.0.4"},
		{"remote addr", nil, "1.2.3.4:80", "1.2.3.4"},
		{"remote without port", nil, "1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	server := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/scan", nil)
		req.Header.Set("X-Real-IP", ip)
		return serve(server, req)
	}

	// GET is rejected by the handler but still counts against the limit.
	assert.Equal(t, http.StatusMethodNotAllowed, send("10.1.1.1").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, send("10.1.1.1").Code)

	w := send("10.1.1.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["kind"])

	// Other clients and unlimited routes are unaffected.
	assert.Equal(t, http.StatusMethodNotAllowed, send("10.1.1.2").Code)
	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	health.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, http.StatusOK, serve(server, health).Code)
}

func TestHandleRateLimitError(t *testing.T) {
	server := &Server{}

	w := httptest.NewRecorder()
	server.handleRateLimitError(w, &QuotaExceededError{Type: "data", Limit: 10, Used: 9})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "data", w.Header().Get("X-Quota-Type"))
	assert.Equal(t, "9", w.Header().Get("X-Quota-Used"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var quota QuotaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quota))
	assert.Equal(t, "quota_exceeded", quota.Kind)
	assert.Equal(t, int64(9), quota.Used)

	w = httptest.NewRecorder()
	server.handleRateLimitError(w, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestInstrumentRecordsStatus(t *testing.T) {
	handler := instrument("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/test", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStatusRecorderHijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rec.Hijack()
	require.Error(t, err)
}
