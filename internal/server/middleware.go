package server

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder remembers the status code written by a handler. It forwards
// Hijack so websocket upgrades work through the middleware chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	// Upgraded connections report 101 in the request metrics.
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// instrument records request metrics under route, a fixed label, so unknown
// paths cannot grow the series count.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		elapsed := time.Since(start)

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		slog.Debug("HTTP request", "method", r.Method, "route", route, "path", r.URL.Path,
			"status", rec.status, "duration", elapsed)
	}
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// rateLimitMiddleware charges each request to its client and rejects it once
// a window or daily quota is spent. Uploads are charged by Content-Length.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}

		client := getClientIP(r)
		if err := s.rateLimiter.CheckRateLimit(client, max(r.ContentLength, 0)); err != nil {
			slog.Info("Rate limit hit", "client", client, "path", r.URL.Path, "error", err)
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

// RateLimitResponse is the 429 body for an exhausted request window.
type RateLimitResponse struct {
	ErrorResponse
	Type       string  `json:"type"`
	Limit      int     `json:"limit"`
	RetryAfter float64 `json:"retry_after"`
}

// QuotaResponse is the 429 body for an exhausted daily quota.
type QuotaResponse struct {
	ErrorResponse
	Type   string `json:"type"`
	Limit  int64  `json:"limit"`
	Used   int64  `json:"used"`
	Resets string `json:"resets"`
}

func retryAfter(d time.Duration) string {
	return fmt.Sprintf("%.0f", max(d, time.Second).Seconds())
}

// handleRateLimitError writes the 429 (or 500) response for err.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rl *RateLimitError
	var quota *QuotaExceededError
	switch {
	case errors.As(err, &rl):
		rateLimitHits.WithLabelValues(rl.Type).Inc()
		h := w.Header()
		h.Set("X-RateLimit-Type", rl.Type)
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		h.Set("Retry-After", retryAfter(rl.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{
			ErrorResponse: ErrorResponse{Error: rl.Error(), Kind: "rate_limit_exceeded"},
			Type:          rl.Type,
			Limit:         rl.Limit,
			RetryAfter:    rl.RetryAfter.Seconds(),
		})
	case errors.As(err, &quota):
		rateLimitHits.WithLabelValues(quota.Type).Inc()
		h := w.Header()
		h.Set("X-Quota-Type", quota.Type)
		h.Set("X-Quota-Limit", strconv.FormatInt(quota.Limit, 10))
		h.Set("X-Quota-Used", strconv.FormatInt(quota.Used, 10))
		h.Set("X-Quota-Resets", quota.Resets.Format(http.TimeFormat))
		h.Set("Retry-After", retryAfter(time.Until(quota.Resets)))
		writeJSON(w, http.StatusTooManyRequests, QuotaResponse{
			ErrorResponse: ErrorResponse{Error: quota.Error(), Kind: "quota_exceeded"},
			Type:          quota.Type,
			Limit:         quota.Limit,
			Used:          quota.Used,
			Resets:        quota.Resets.Format(time.RFC3339),
		})
	default:
		slog.Error("Rate limit check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "rate limit check failed", Kind: "internal"})
	}
}

// getClientIP identifies the client, preferring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
