package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/rectify"
	"github.com/MeKo-Tech/qrscan/internal/server"
)

const infoLevel = "info"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	pl := pipeline.DefaultConfig()
	srv := server.DefaultConfig()

	return &Config{
		LogLevel: infoLevel,
		Verbose:  false,
		Scan: ScanConfig{
			VersionEstimate: pl.Locator.VersionEstimate,
			MaxImageSide:    pl.Image.MaxSide,
			Trim:            pl.Rectify.Trim,
			Fallback:        false,
			Workers:         pl.Parallel.MaxWorkers,
		},
		Locator: defaultLocatorConfig(),
		Output: OutputConfig{
			Format:       pipeline.FormatText,
			OverlayColor: pl.OverlayColor,
		},
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			CORSOrigin:      srv.CORSOrigin,
			MaxUploadMB:     srv.MaxUploadMB,
			TimeoutSec:      srv.TimeoutSec,
			ShutdownTimeout: int(srv.ShutdownTimeout / time.Second),
			OverlayEnabled:  srv.OverlayEnabled,
			MaxBatchItems:   srv.MaxBatchItems,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDay:     1 << 30,
			},
		},
		Batch: BatchConfig{
			Workers: pl.Parallel.MaxWorkers,
		},
		PDF: PDFConfig{
			Workers: pl.Parallel.MaxWorkers,
		},
	}
}

func defaultLocatorConfig() LocatorConfig {
	cfg := locator.DefaultConfig()
	return LocatorConfig{
		SquareTolerance:        cfg.SquareTolerance,
		DensityThreshold:       cfg.DensityThreshold,
		SizeThreshold:          cfg.SizeThreshold,
		DistanceThreshold:      cfg.DistanceThreshold,
		OrthogonalityThreshold: cfg.OrthogonalityThreshold,
		ColocationThreshold:    cfg.ColocationThreshold,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{pipeline.FormatText, pipeline.FormatJSON, pipeline.FormatCSV, pipeline.FormatYAML}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Output.OverlayColor != "" {
		if _, err := colorful.Hex(c.Output.OverlayColor); err != nil {
			return fmt.Errorf("invalid overlay color: %s", c.Output.OverlayColor)
		}
	}

	if err := c.toLocatorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid locator config: %w", err)
	}
	if err := validateThreshold(c.Scan.Brightness, "scan.brightness"); err != nil {
		return err
	}
	if c.Scan.MaxImageSide < 0 {
		return fmt.Errorf("invalid max image side: %d (must not be negative)", c.Scan.MaxImageSide)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxBatchItems <= 0 {
		return fmt.Errorf("invalid max batch items: %d (must be positive)", c.Server.MaxBatchItems)
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("invalid scan workers: %d (must be positive)", c.Scan.Workers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.PDF.Workers < 0 {
		return fmt.Errorf("invalid pdf workers: %d (must not be negative)", c.PDF.Workers)
	}

	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	if c.PDF.Pages != "" {
		if _, err := pdf.ParsePageRange(c.PDF.Pages); err != nil {
			return fmt.Errorf("invalid pdf pages: %w", err)
		}
	}

	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Locator = c.toLocatorConfig()
	cfg.Rectify = c.toRectifyConfig()
	cfg.Image.Brightness = c.Scan.Brightness
	cfg.Image.MaxSide = c.Scan.MaxImageSide
	cfg.Fallback = c.Scan.Fallback
	if c.Output.OverlayColor != "" {
		cfg.OverlayColor = c.Output.OverlayColor
	}
	if c.Scan.Workers > 0 {
		cfg.Parallel.MaxWorkers = c.Scan.Workers
	}
	return cfg
}

// toLocatorConfig converts to locator.Config.
func (c *Config) toLocatorConfig() locator.Config {
	return locator.Config{
		VersionEstimate:        c.Scan.VersionEstimate,
		SquareTolerance:        c.Locator.SquareTolerance,
		DensityThreshold:       c.Locator.DensityThreshold,
		SizeThreshold:          c.Locator.SizeThreshold,
		DistanceThreshold:      c.Locator.DistanceThreshold,
		OrthogonalityThreshold: c.Locator.OrthogonalityThreshold,
		ColocationThreshold:    c.Locator.ColocationThreshold,
	}
}

// toRectifyConfig converts to rectify.Config.
func (c *Config) toRectifyConfig() rectify.Config {
	cfg := rectify.DefaultConfig()
	cfg.Trim = c.Scan.Trim
	cfg.DebugDir = c.Scan.DebugDir
	return cfg
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		MaxUploadMB:     c.Server.MaxUploadMB,
		TimeoutSec:      c.Server.TimeoutSec,
		ShutdownTimeout: time.Duration(c.Server.ShutdownTimeout) * time.Second,
		Pipeline:        c.ToPipelineConfig(),
		OverlayEnabled:  c.Server.OverlayEnabled,
		OverlayColor:    c.Output.OverlayColor,
		RateLimit: server.RateLimitConfig{
			Enabled:           c.Server.RateLimit.Enabled,
			RequestsPerMinute: c.Server.RateLimit.RequestsPerMinute,
			RequestsPerHour:   c.Server.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: c.Server.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     c.Server.RateLimit.MaxDataPerDay,
		},
		PDFWorkers:    c.PDF.Workers,
		MaxBatchItems: c.Server.MaxBatchItems,
	}
}

// ToBatchConfig converts to batch.Config.
func (c *Config) ToBatchConfig() *batch.Config {
	cfg := batch.DefaultConfig()
	cfg.VersionEstimate = c.Scan.VersionEstimate
	cfg.Brightness = c.Scan.Brightness
	cfg.MaxImageSide = c.Scan.MaxImageSide
	cfg.Trim = c.Scan.Trim
	cfg.Fallback = c.Scan.Fallback
	cfg.DebugDir = c.Scan.DebugDir
	cfg.OverlayDir = c.Output.OverlayDir
	cfg.OverlayColor = c.Output.OverlayColor
	cfg.Format = c.Output.Format
	cfg.OutputFile = c.Output.File
	cfg.Workers = c.Batch.Workers
	cfg.ContinueOnError = !c.Batch.FailFast
	cfg.Recursive = c.Batch.Recursive
	cfg.IncludePatterns = c.Batch.IncludePatterns
	cfg.ExcludePatterns = c.Batch.ExcludePatterns
	return cfg
}

// ToPDFConfig converts to pdf.ProcessorConfig.
func (c *Config) ToPDFConfig() *pdf.ProcessorConfig {
	cfg := pdf.DefaultProcessorConfig()
	cfg.MaxWorkers = c.PDF.Workers
	if c.PDF.UserPassword != "" || c.PDF.OwnerPassword != "" {
		cfg.Credentials = &pdf.PasswordCredentials{
			UserPassword:  c.PDF.UserPassword,
			OwnerPassword: c.PDF.OwnerPassword,
		}
	}
	return cfg
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
