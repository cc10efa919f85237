package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Scan settings
	VersionEstimate int
	Brightness      float64
	MaxImageSide    int
	Trim            bool
	Fallback        bool
	DebugDir        string

	// Output settings
	OverlayDir   string
	OverlayColor string
	Format       string
	OutputFile   string

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress bool
	Quiet        bool
	ShowStats    bool
}

// DefaultConfig returns the batch defaults: text output, trim on, keep going
// after failures.
func DefaultConfig() *Config {
	return &Config{
		MaxImageSide:    pipeline.DefaultConfig().Image.MaxSide,
		Trim:            true,
		Format:          pipeline.FormatText,
		Workers:         pipeline.DefaultParallelConfig().MaxWorkers,
		ContinueOnError: true,
	}
}

// Result holds the result of batch processing.
type Result struct {
	Results     []*pipeline.ScanResult
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
	Profile     pipeline.ProfileSnapshot
}

// Failed returns the number of inputs that did not decode.
func (r *Result) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Stats summarises the run.
func (r *Result) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(r.Results, r.Duration, r.WorkerCount)
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile on fs, or to w when
// outputFile is empty.
func (r *Result) SaveResults(fs afero.Fs, w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := afero.WriteFile(fs, outputFile, []byte(output+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprintln(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(w, "  Decoded: %d\n", stats.Decoded)
	_, _ = fmt.Fprintf(w, "  Via reference decoder: %d\n", stats.ViaReference)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Microsecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
	if r.Profile.Scans > 0 {
		_, _ = fmt.Fprintf(w, "  Avg scan: %v\n", r.Profile.AverageScan.Round(time.Microsecond))
	}
}
