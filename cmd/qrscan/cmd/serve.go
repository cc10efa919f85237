package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scanning service",
		Long: `Start an HTTP server that scans uploaded images and PDFs.

The server provides the following endpoints:
  POST /api/v1/scan        - Scan an uploaded image
  POST /api/v1/scan/pdf    - Scan the images of an uploaded PDF
  POST /api/v1/scan/batch  - Scan several base64 images in one request
  GET  /ws/scan            - WebSocket scanning
  GET  /health             - Health check
  GET  /version            - Build information
  GET  /metrics            - Prometheus metrics

Examples:
  qrscan serve
  qrscan serve --port 8080
  qrscan serve --host 0.0.0.0 --port 3000 --rate-limit`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	addScanFlags(serveCmd)

	f := serveCmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int64("max-upload-mb", 50, "maximum upload size in MB")
	f.Int("timeout", 60, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Bool("overlay-enable", true, "enable overlay image responses")
	f.String("overlay-color", "", "overlay colour as hex, e.g. #ff0000")
	f.Int("max-batch-items", 10, "maximum images per batch request")
	f.Int("pdf-workers", 0, "parallel image scans per PDF (0 = number of CPUs)")
	f.Bool("rate-limit", false, "enable per-client rate limiting")
	f.Int("requests-per-minute", 60, "maximum requests per minute per client")
	f.Int("requests-per-hour", 1000, "maximum requests per hour per client")
	f.Int("max-requests-per-day", 10000, "maximum requests per day per client")
	f.Int64("max-data-per-day", 1<<30, "maximum uploaded bytes per day per client")
	return serveCmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	if a.cfg == nil {
		return errors.New("configuration not loaded")
	}
	cfg := *a.cfg
	overrideFloat64(cmd, "brightness", &cfg.Scan.Brightness)
	overrideBool(cmd, "fallback", &cfg.Scan.Fallback)
	overrideString(cmd, "debug-dir", &cfg.Scan.DebugDir)
	overrideInt(cmd, "version-estimate", &cfg.Scan.VersionEstimate)
	overrideInt(cmd, "max-side", &cfg.Scan.MaxImageSide)
	overrideBool(cmd, "trim", &cfg.Scan.Trim)
	overrideInt(cmd, "workers", &cfg.Scan.Workers)

	overrideString(cmd, "host", &cfg.Server.Host)
	overrideInt(cmd, "port", &cfg.Server.Port)
	overrideString(cmd, "cors-origin", &cfg.Server.CORSOrigin)
	overrideInt64(cmd, "max-upload-mb", &cfg.Server.MaxUploadMB)
	overrideInt(cmd, "timeout", &cfg.Server.TimeoutSec)
	overrideInt(cmd, "shutdown-timeout", &cfg.Server.ShutdownTimeout)
	overrideBool(cmd, "overlay-enable", &cfg.Server.OverlayEnabled)
	overrideString(cmd, "overlay-color", &cfg.Output.OverlayColor)
	overrideInt(cmd, "max-batch-items", &cfg.Server.MaxBatchItems)
	overrideInt(cmd, "pdf-workers", &cfg.PDF.Workers)
	overrideBool(cmd, "rate-limit", &cfg.Server.RateLimit.Enabled)
	overrideInt(cmd, "requests-per-minute", &cfg.Server.RateLimit.RequestsPerMinute)
	overrideInt(cmd, "requests-per-hour", &cfg.Server.RateLimit.RequestsPerHour)
	overrideInt(cmd, "max-requests-per-day", &cfg.Server.RateLimit.MaxRequestsPerDay)
	overrideInt64(cmd, "max-data-per-day", &cfg.Server.RateLimit.MaxDataPerDay)

	if err := cfg.Validate(); err != nil {
		return err
	}
	sc := cfg.ToServerConfig()

	srv, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(sc.TimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting QR scan server", "host", sc.Host, "port", sc.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	slog.Info("Starting graceful shutdown", "timeout", sc.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
