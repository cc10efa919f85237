// Package pipeline wires the QR stages together: downscale, monochrome,
// locate, rectify, grid sampling, format reading and decoding.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/rectify"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ImageConfig controls input preparation before the finder search.
type ImageConfig struct {
	// DownscaleTrigger is the side both dimensions must exceed before shrinking.
	DownscaleTrigger int
	// MaxSide is the longest side after shrinking. Zero disables downscaling.
	MaxSide int
	// Brightness overrides the monochrome threshold factor. Zero selects the
	// image's own mean brightness.
	Brightness float64
}

// Config holds configuration for the scan pipeline and its stages.
type Config struct {
	Locator locator.Config
	Rectify rectify.Config
	Image   ImageConfig

	// Fallback asks the reference backend when the core decoder fails.
	Fallback bool
	// OverlayColor is the hex colour used by RenderOverlay.
	OverlayColor string

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with stage defaults.
func DefaultConfig() Config {
	return Config{
		Locator: locator.DefaultConfig(),
		Rectify: rectify.DefaultConfig(),
		Image: ImageConfig{
			DownscaleTrigger: utils.DownscaleTrigger,
			MaxSide:          utils.DownscaleTarget,
		},
		OverlayColor: "#ff0000",
		Parallel:     DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	backend barcode.Backend
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an existing config.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithLocatorConfig replaces all finder thresholds.
func (b *Builder) WithLocatorConfig(cfg locator.Config) *Builder {
	b.cfg.Locator = cfg
	return b
}

// WithVersionEstimate sets the version used to size the minimum sprite surface.
func (b *Builder) WithVersionEstimate(v int) *Builder {
	if v > 0 {
		b.cfg.Locator.VersionEstimate = v
	}
	return b
}

// WithBrightness overrides the monochrome threshold factor.
func (b *Builder) WithBrightness(brightness float64) *Builder {
	b.cfg.Image.Brightness = brightness
	return b
}

// WithMaxImageSide sets the downscale target. Zero disables downscaling.
func (b *Builder) WithMaxImageSide(side int) *Builder {
	if side >= 0 {
		b.cfg.Image.MaxSide = side
	}
	return b
}

// WithDebugDir enables rectifier debug dumps into dir.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.Rectify.DebugDir = dir
	return b
}

// WithTrim toggles the precise trim after the finder crop.
func (b *Builder) WithTrim(enabled bool) *Builder {
	b.cfg.Rectify.Trim = enabled
	return b
}

// WithFallback toggles the reference decoder fallback.
func (b *Builder) WithFallback(enabled bool) *Builder {
	b.cfg.Fallback = enabled
	return b
}

// WithBackend sets the reference backend used for fallback.
func (b *Builder) WithBackend(be barcode.Backend) *Builder {
	b.backend = be
	return b
}

// WithOverlayColor sets the overlay colour as a hex string.
func (b *Builder) WithOverlayColor(c string) *Builder {
	if c != "" {
		b.cfg.OverlayColor = c
	}
	return b
}

// WithParallelWorkers sets the number of parallel workers for multi-image runs.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for multi-image runs.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if err := b.cfg.Locator.Validate(); err != nil {
		return err
	}
	if b.cfg.Image.Brightness < 0 || b.cfg.Image.Brightness > 1 {
		return fmt.Errorf("brightness %.3f outside [0, 1]", b.cfg.Image.Brightness)
	}
	if b.cfg.Image.MaxSide < 0 || b.cfg.Image.DownscaleTrigger < 0 {
		return errors.New("image sizes must be >= 0")
	}
	if _, err := colorful.Hex(b.cfg.OverlayColor); err != nil {
		return fmt.Errorf("invalid overlay colour %q: %w", b.cfg.OverlayColor, err)
	}
	return nil
}

// Pipeline runs the scan stages over images. It is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	locator   *locator.Locator
	rectifier *rectify.Rectifier
	backend   barcode.Backend
	profiler  *Profiler
}

// Build validates the configuration and creates the stage components.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	loc, err := locator.New(b.cfg.Locator)
	if err != nil {
		return nil, fmt.Errorf("init locator: %w", err)
	}
	rx, err := rectify.New(b.cfg.Rectify)
	if err != nil {
		return nil, fmt.Errorf("init rectifier: %w", err)
	}
	p := &Pipeline{cfg: b.cfg, locator: loc, rectifier: rx, profiler: &Profiler{}}

	if b.cfg.Fallback {
		be := b.backend
		if be == nil {
			be, err = barcode.NewBackend()
			if err != nil {
				return nil, fmt.Errorf("init reference backend: %w", err)
			}
		}
		p.backend = be
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Stats returns the cumulative scan counters.
func (p *Pipeline) Stats() ProfileSnapshot { return p.profiler.Snapshot() }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	return map[string]any{
		"locator":   p.cfg.Locator,
		"trim":      p.cfg.Rectify.Trim,
		"debug_dir": p.cfg.Rectify.DebugDir,
		"image": map[string]any{
			"downscale_trigger": p.cfg.Image.DownscaleTrigger,
			"max_side":          p.cfg.Image.MaxSide,
			"brightness":        p.cfg.Image.Brightness,
		},
		"fallback": p.backend != nil,
		"parallel": map[string]any{
			"max_workers":           p.cfg.Parallel.MaxWorkers,
			"has_progress_callback": p.cfg.Parallel.ProgressCallback != nil,
		},
	}
}
