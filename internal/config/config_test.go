package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, 10, cfg.Scan.VersionEstimate)
	assert.True(t, cfg.Scan.Trim)
	assert.False(t, cfg.Scan.Fallback)
	assert.Equal(t, pipeline.FormatText, cfg.Output.Format)
	assert.Equal(t, "#ff0000", cfg.Output.OverlayColor)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.False(t, cfg.Batch.ContinueOnError)
	assert.False(t, cfg.Batch.FailFast)
	assert.Positive(t, cfg.Batch.Workers)
}

func TestDefaultLocatorConfig(t *testing.T) {
	want := locator.DefaultConfig()
	got := DefaultConfig().toLocatorConfig()
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"empty format", func(c *Config) { c.Output.Format = "" }, ""},
		{"yaml format", func(c *Config) { c.Output.Format = pipeline.FormatYAML }, ""},
		{"overlay color", func(c *Config) { c.Output.OverlayColor = "red" }, "invalid overlay color"},
		{"density", func(c *Config) { c.Locator.DensityThreshold = 1.5 }, "density threshold"},
		{"orthogonality", func(c *Config) { c.Locator.OrthogonalityThreshold = -0.1 }, "orthogonality threshold"},
		{"threshold edges", func(c *Config) { c.Locator.SizeThreshold = 0; c.Locator.DistanceThreshold = 1 }, ""},
		{"version estimate", func(c *Config) { c.Scan.VersionEstimate = 41 }, "version estimate"},
		{"brightness", func(c *Config) { c.Scan.Brightness = 2 }, "scan.brightness"},
		{"max side", func(c *Config) { c.Scan.MaxImageSide = -1 }, "max image side"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = -1 }, "invalid timeout"},
		{"batch items", func(c *Config) { c.Server.MaxBatchItems = 0 }, "max batch items"},
		{"scan workers", func(c *Config) { c.Scan.Workers = 0 }, "scan workers"},
		{"batch workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
		{"pdf workers", func(c *Config) { c.PDF.Workers = -2 }, "pdf workers"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerHour = -1 }, "rate limit"},
		{"pages", func(c *Config) { c.PDF.Pages = "4-2" }, "invalid pdf pages"},
		{"pages ok", func(c *Config) { c.PDF.Pages = "1,3-4" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.VersionEstimate = 4
	cfg.Scan.Brightness = 0.4
	cfg.Scan.MaxImageSide = 800
	cfg.Scan.Trim = false
	cfg.Scan.Fallback = true
	cfg.Scan.DebugDir = "/tmp/debug"
	cfg.Scan.Workers = 3
	cfg.Locator.ColocationThreshold = 0.08
	cfg.Output.OverlayColor = "#00ff00"

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, 4, pc.Locator.VersionEstimate)
	assert.InDelta(t, 0.08, pc.Locator.ColocationThreshold, 1e-9)
	assert.InDelta(t, 0.4, pc.Image.Brightness, 1e-9)
	assert.Equal(t, 800, pc.Image.MaxSide)
	assert.Equal(t, pipeline.DefaultConfig().Image.DownscaleTrigger, pc.Image.DownscaleTrigger)
	assert.False(t, pc.Rectify.Trim)
	assert.Equal(t, "/tmp/debug", pc.Rectify.DebugDir)
	assert.True(t, pc.Fallback)
	assert.Equal(t, "#00ff00", pc.OverlayColor)
	assert.Equal(t, 3, pc.Parallel.MaxWorkers)

	_, err := pipeline.NewBuilderFromConfig(pc).Build()
	require.NoError(t, err)
}

func TestToServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Server.ShutdownTimeout = 3
	cfg.Server.RateLimit.Enabled = true
	cfg.PDF.Workers = 2

	sc := cfg.ToServerConfig()
	assert.Equal(t, 9000, sc.Port)
	assert.Equal(t, 3*time.Second, sc.ShutdownTimeout)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 60, sc.RateLimit.RequestsPerMinute)
	assert.Equal(t, 2, sc.PDFWorkers)
	assert.Equal(t, cfg.Output.OverlayColor, sc.OverlayColor)
	assert.Equal(t, cfg.Server.MaxBatchItems, sc.MaxBatchItems)
}

func TestToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = pipeline.FormatCSV
	cfg.Output.File = "out.csv"
	cfg.Output.OverlayDir = "overlays"
	cfg.Batch.Recursive = true
	cfg.Batch.IncludePatterns = []string{"*.png"}
	cfg.Batch.Workers = 5

	bc := cfg.ToBatchConfig()
	assert.Equal(t, pipeline.FormatCSV, bc.Format)
	assert.Equal(t, "out.csv", bc.OutputFile)
	assert.Equal(t, "overlays", bc.OverlayDir)
	assert.True(t, bc.Recursive)
	assert.Equal(t, []string{"*.png"}, bc.IncludePatterns)
	assert.True(t, bc.ContinueOnError)
	assert.Equal(t, 5, bc.Workers)
	assert.True(t, bc.Trim)

	cfg.Batch.FailFast = true
	assert.False(t, cfg.ToBatchConfig().ContinueOnError)
}

func TestToPDFConfig(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.ToPDFConfig()
	assert.True(t, pc.AllowPasswords)
	assert.Nil(t, pc.Credentials)

	cfg.PDF.UserPassword = "secret"
	pc = cfg.ToPDFConfig()
	require.NotNil(t, pc.Credentials)
	assert.Equal(t, "secret", pc.Credentials.UserPassword)
}

func TestValidateThreshold(t *testing.T) {
	assert.NoError(t, validateThreshold(0, "x"))
	assert.NoError(t, validateThreshold(1, "x"))
	assert.Error(t, validateThreshold(-0.01, "x"))
	assert.Error(t, validateThreshold(1.01, "x"))
}
