// Package batch scans many image files with one pipeline and aggregates the
// results.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// ProcessBatch discovers images under paths on fs and scans them. Per-file
// failures are recorded in the result unless config.ContinueOnError is false,
// in which case the first failure aborts the batch.
func ProcessBatch(ctx context.Context, fs afero.Fs, paths []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	files, err := discoverImageFiles(fs, paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errNoImages
	}

	var progressCallback pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progressCallback = pipeline.NewConsoleProgressCallback(os.Stderr, "Scanning: ")
	}

	pl, err := buildPipeline(config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to build scan pipeline: %w", err)
	}

	startTime := time.Now()
	results, err := processFiles(ctx, fs, pl, files, config)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Results:     results,
		ImagePaths:  files,
		Duration:    duration,
		WorkerCount: pl.Config().Parallel.MaxWorkers,
		Profile:     pl.Stats(),
	}, nil
}

// IsNoImages reports whether err means discovery found no images.
func IsNoImages(err error) bool { return errors.Is(err, errNoImages) }
