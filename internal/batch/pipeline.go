package batch

import (
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// buildPipeline creates a scan pipeline from the batch configuration.
func buildPipeline(config *Config, progressCallback pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithParallelWorkers(config.Workers).
		WithProgressCallback(progressCallback).
		WithVersionEstimate(config.VersionEstimate).
		WithBrightness(config.Brightness).
		WithMaxImageSide(config.MaxImageSide).
		WithTrim(config.Trim).
		WithFallback(config.Fallback).
		WithOverlayColor(config.OverlayColor)

	if config.DebugDir != "" {
		b = b.WithDebugDir(config.DebugDir)
	}
	return b.Build()
}
