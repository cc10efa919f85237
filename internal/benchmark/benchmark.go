// Package benchmark measures scan latency of the core decoder against the
// reference barcode backend on the same images.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Result holds the outcome of one benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	Samples      []time.Duration
	MemoryBefore common.MemoryStats
	MemoryAfter  common.MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration per iteration.
func (r Result) Average() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// Percentile returns the p-th percentile (0-100) of the per-iteration samples.
func (r Result) Percentile(p float64) time.Duration {
	if len(r.Samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), r.Samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p / 100 * float64(len(sorted)-1))
	return sorted[max(0, min(idx, len(sorted)-1))]
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	memDiff := int64(r.MemoryAfter.AllocBytes) - int64(r.MemoryBefore.AllocBytes) //nolint:gosec // G115: display only
	return fmt.Sprintf("%s: %d iterations, avg: %v, p95: %v, total: %v, mem: %+d KB",
		r.Name, r.Iterations, r.Average(), r.Percentile(95), r.Duration, memDiff/1024)
}

// Benchmark is a named function run once per iteration.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark by name.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs every benchmark in insertion order.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func runBenchmark(b Benchmark, iterations int) Result {
	runtime.GC()
	res := Result{Name: b.Name, MemoryBefore: common.GetMemoryStats()}

	timer := common.NewNamedTimer(b.Name)
	for range iterations {
		start := time.Now()
		if err := b.Func(); err != nil {
			res.Error = err
			break
		}
		res.Samples = append(res.Samples, time.Since(start))
		res.Iterations++
	}
	res.Duration = timer.Stop()
	res.MemoryAfter = common.GetMemoryStats()
	return res
}

// TestImage is one image in a comparison.
type TestImage struct {
	Name        string
	Description string
	Image       image.Image
}

// Comparison holds the core and reference timings for one image.
type Comparison struct {
	Image     TestImage
	Size      string
	Core      Result
	Reference Result
	// Speedup is reference time divided by core time.
	Speedup float64
}

func (c Comparison) String() string {
	if c.Core.Error != nil || c.Reference.Error != nil {
		return fmt.Sprintf("%s (%s): core: %v, reference: %v", c.Image.Name, c.Size, c.Core, c.Reference)
	}
	verdict := "same speed"
	switch {
	case c.Speedup > 1:
		verdict = fmt.Sprintf("%.2fx faster", c.Speedup)
	case c.Speedup > 0 && c.Speedup < 1:
		verdict = fmt.Sprintf("%.2fx slower", 1/c.Speedup)
	}
	return fmt.Sprintf("%s (%s): core avg %v, reference avg %v (core %s)",
		c.Image.Name, c.Size, c.Core.Average(), c.Reference.Average(), verdict)
}

// CoreVsReference compares the core pipeline with the reference backend.
type CoreVsReference struct {
	images  []TestImage
	results []Comparison
}

// NewCoreVsReference creates a comparison over generated QR fixtures of
// increasing size and difficulty.
func NewCoreVsReference() (*CoreVsReference, error) {
	specs := []struct {
		name, desc, content string
		modulePx            int
		rotation            float64
	}{
		{"v1_small", "Version 1, 4px modules", "HELLO", 4, 0},
		{"v1_large", "Version 1, 10px modules", "HELLO WORLD", 10, 0},
		{"v4_url", "Byte payload, 6px modules", "https://example.com/tickets/0123456789?seat=42&row=7", 6, 0},
		{"rotated", "Version 1, rotated 20 degrees", "ROTATED", 8, 20},
	}

	b := &CoreVsReference{}
	for _, s := range specs {
		cfg := testutil.DefaultQRConfig(s.content)
		cfg.ModulePx = s.modulePx
		cfg.Rotation = s.rotation
		if s.rotation != 0 {
			cfg.Margin = 4 * s.modulePx
		}
		img, err := testutil.GenerateQR(cfg)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", s.name, err)
		}
		b.AddTestImage(TestImage{Name: s.name, Description: s.desc, Image: img})
	}
	return b, nil
}

// AddTestImage adds an image to the comparison.
func (b *CoreVsReference) AddTestImage(img TestImage) {
	b.images = append(b.images, img)
}

// AddImageFile loads path and adds it to the comparison.
func (b *CoreVsReference) AddImageFile(path string) error {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return err
	}
	b.AddTestImage(TestImage{Name: path, Description: "file", Image: img})
	return nil
}

// Run benchmarks every image with both decoders. Progress lines go to w.
func (b *CoreVsReference) Run(ctx context.Context, w io.Writer, iterations int) ([]Comparison, error) {
	pl, err := pipeline.NewBuilder().Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	ref, err := barcode.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to create reference backend: %w", err)
	}

	b.results = make([]Comparison, 0, len(b.images))
	for _, ti := range b.images {
		if err := ctx.Err(); err != nil {
			return b.results, err
		}
		_, _ = fmt.Fprintf(w, "Benchmarking: %s (%s)\n", ti.Name, ti.Description)

		img := ti.Image
		suite := NewSuite()
		suite.Add("core", func() error {
			_, err := pl.ProcessImageContext(ctx, img)
			return err
		})
		suite.Add("reference", func() error {
			_, err := ref.Decode(ctx, img, barcode.Options{})
			return err
		})

		// Warmup
		_, _ = pl.ProcessImageContext(ctx, img)

		bounds := img.Bounds()
		c := Comparison{
			Image:     ti,
			Size:      fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
			Core:      suite.Run("core", iterations),
			Reference: suite.Run("reference", iterations),
		}
		if c.Core.Error == nil && c.Reference.Error == nil && c.Core.Duration > 0 {
			c.Speedup = float64(c.Reference.Duration) / float64(c.Core.Duration)
		}
		b.results = append(b.results, c)
		_, _ = fmt.Fprintf(w, "  %s\n", c)
	}
	return b.results, nil
}

// Results returns the last comparison results.
func (b *CoreVsReference) Results() []Comparison {
	return b.results
}

// PrintDetailedResults writes a report of the last run to w.
func (b *CoreVsReference) PrintDetailedResults(w io.Writer) {
	if len(b.results) == 0 {
		_, _ = fmt.Fprintln(w, "No benchmark results available")
		return
	}

	_, _ = fmt.Fprintln(w, "\n"+strings.Repeat("=", 72))
	_, _ = fmt.Fprintln(w, "Core vs Reference QR Decoding Benchmark")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 72))
	_, _ = fmt.Fprintf(w, "System: %s/%s, %d CPUs, %s\n\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())

	var coreTotal, refTotal time.Duration
	ok := 0
	for _, c := range b.results {
		_, _ = fmt.Fprintf(w, "• %s\n", c)
		if c.Core.Error == nil && c.Reference.Error == nil {
			coreTotal += c.Core.Duration
			refTotal += c.Reference.Duration
			ok++
		}
	}

	_, _ = fmt.Fprintln(w, "\nSummary:")
	_, _ = fmt.Fprintf(w, "  Compared: %d/%d images\n", ok, len(b.results))
	if ok > 0 && coreTotal > 0 {
		_, _ = fmt.Fprintf(w, "  Total core time: %v\n", coreTotal)
		_, _ = fmt.Fprintf(w, "  Total reference time: %v\n", refTotal)
		_, _ = fmt.Fprintf(w, "  Overall speedup: %.2fx\n", float64(refTotal)/float64(coreTotal))
	}
}

// WriteCSV writes the last results as CSV rows with a header.
func (b *CoreVsReference) WriteCSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "image,size,core_avg_ms,core_p95_ms,reference_avg_ms,speedup,error"); err != nil {
		return err
	}
	for _, c := range b.results {
		errText := ""
		switch {
		case c.Core.Error != nil:
			errText = "core: " + c.Core.Error.Error()
		case c.Reference.Error != nil:
			errText = "reference: " + c.Reference.Error.Error()
		}
		_, err := fmt.Fprintf(w, "%s,%s,%.3f,%.3f,%.3f,%.2f,%q\n",
			c.Image.Name, c.Size,
			ms(c.Core.Average()), ms(c.Core.Percentile(95)), ms(c.Reference.Average()),
			c.Speedup, errText)
		if err != nil {
			return err
		}
	}
	return nil
}

func ms(d time.Duration) float64 { return float64(d.Nanoseconds()) / 1e6 }
