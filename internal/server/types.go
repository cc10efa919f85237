package server

import (
	"context"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

// scanner defines the methods needed by the server from a pipeline.
type scanner interface {
	ProcessImageContext(ctx context.Context, img image.Image) (*pipeline.ScanResult, error)
	ProcessImagesParallel(ctx context.Context, images []image.Image, config pipeline.ParallelConfig) ([]*pipeline.ScanResult, error)
	Stats() pipeline.ProfileSnapshot
}

// documentScanner scans PDF files on disk.
type documentScanner interface {
	ProcessFile(ctx context.Context, filename, pageRange string) (*pdf.DocumentResult, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       scanner
	pdf            documentScanner
	rateLimiter    *RateLimiter
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
	overlayColor   string
	maxBatchItems  int
	startTime      time.Time
}

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout time.Duration
	Pipeline        pipeline.Config
	OverlayEnabled  bool
	OverlayColor    string
	RateLimit       RateLimitConfig
	PDFWorkers      int
	MaxBatchItems   int
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		MaxUploadMB:     50,
		TimeoutSec:      60,
		ShutdownTimeout: 10 * time.Second,
		Pipeline:        pipeline.DefaultConfig(),
		OverlayEnabled:  true,
		OverlayColor:    "#ff0000",
		MaxBatchItems:   10,
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string                   `json:"status"`
	Version string                   `json:"version,omitempty"`
	Time    string                   `json:"time"`
	Uptime  string                   `json:"uptime"`
	Memory  common.MemoryStats       `json:"memory"`
	Scans   pipeline.ProfileSnapshot `json:"scans"`
}

// VersionResponse is returned by /version.
type VersionResponse = version.BuildInfo

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ScanResponse wraps a single image scan.
type ScanResponse struct {
	RequestID string               `json:"request_id"`
	Result    *pipeline.ScanResult `json:"result"`
}

// PDFResponse wraps a document scan.
type PDFResponse struct {
	RequestID string              `json:"request_id"`
	Document  *pdf.DocumentResult `json:"document"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) (*Server, error) {
	if config.OverlayColor != "" {
		config.Pipeline.OverlayColor = config.OverlayColor
	}
	pl, err := pipeline.NewBuilderFromConfig(config.Pipeline).Build()
	if err != nil {
		return nil, err
	}
	slog.Info("Scan pipeline ready", "pipeline", pl.Info())
	proc, err := pdf.NewProcessor(pl, &pdf.ProcessorConfig{MaxWorkers: config.PDFWorkers, AllowPasswords: true})
	if err != nil {
		return nil, err
	}
	return newServer(config, pl, proc), nil
}

func newServer(config Config, sc scanner, ds documentScanner) *Server {
	s := &Server{
		pipeline:       sc,
		pdf:            ds,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
		overlayColor:   config.OverlayColor,
		maxBatchItems:  config.MaxBatchItems,
		startTime:      time.Now(),
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = DefaultConfig().MaxUploadMB
	}
	if s.maxBatchItems <= 0 {
		s.maxBatchItems = DefaultConfig().MaxBatchItems
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

// SetupRoutes configures the HTTP routes. Scan routes are rate limited.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	open := func(route string, h http.HandlerFunc) {
		mux.HandleFunc(route, instrument(route, s.corsMiddleware(h)))
	}
	limited := func(route string, h http.HandlerFunc) {
		open(route, s.rateLimitMiddleware(h))
	}

	open("/health", s.healthHandler)
	open("/version", s.versionHandler)
	limited("/api/v1/scan", s.scanImageHandler)
	limited("/api/v1/scan/pdf", s.scanPDFHandler)
	limited("/api/v1/scan/batch", s.scanBatchHandler)
	limited("/ws/scan", s.scanWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a ServeMux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) requestTimeout() time.Duration {
	if s.timeoutSec <= 0 {
		return 0
	}
	return time.Duration(s.timeoutSec) * time.Second
}
