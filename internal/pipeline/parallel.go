package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for multi-image processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
	ErrorHandler     func(int, error) // Optional per-image error handler
}

// DefaultParallelConfig returns defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image image.Image
}

type imageResult struct {
	index  int
	result *ScanResult
	err    error
}

// ProcessImages scans images with the pipeline's parallel configuration.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*ScanResult, error) {
	return p.ProcessImagesParallel(ctx, images, p.cfg.Parallel)
}

// ProcessImagesParallel scans images on a worker pool. Results keep input
// order and are all non-nil; failed scans carry their error. The returned
// error is the first failure in input order.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*ScanResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(images))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob)
	results := make(chan imageResult, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*ScanResult, len(images))
	errs := make([]error, len(images))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		done++
		if config.ProgressCallback != nil {
			if r.err != nil {
				config.ProgressCallback.OnError(r.index, r.err)
			}
			config.ProgressCallback.OnProgress(done, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, err)
		}
	}
	return ordered, firstErr
}

func (p *Pipeline) worker(ctx context.Context, jobs <-chan imageJob, results chan<- imageResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.ProcessImageContext(ctx, job.image)
			results <- imageResult{index: job.index, result: res, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats summarises a multi-image run.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	Decoded          int           `json:"decoded"`
	ViaReference     int           `json:"via_reference"`
	Failed           int           `json:"failed"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats calculates performance statistics for a run.
func CalculateParallelStats(results []*ScanResult, duration time.Duration, workerCount int) ParallelStats {
	stats := ParallelStats{
		TotalImages:   len(results),
		WorkerCount:   workerCount,
		TotalDuration: duration,
	}
	for _, r := range results {
		switch {
		case !r.OK():
			stats.Failed++
		case r.Source == SourceReference:
			stats.Decoded++
			stats.ViaReference++
		default:
			stats.Decoded++
		}
	}
	if n := len(results); n > 0 && duration > 0 {
		stats.AveragePerImage = duration / time.Duration(n)
		stats.ThroughputPerSec = float64(n) / duration.Seconds()
	}
	return stats
}
