package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/MeKo-Tech/qrscan/internal/benchmark"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func main() {
	var (
		iterations = flag.Int("iterations", 5, "Number of iterations per benchmark")
		outputFile = flag.String("output", "", "Write results as CSV to this file (optional)")
		fixtures   = flag.Bool("fixtures", true, "Also benchmark images under testdata/images")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	fmt.Println("qrscan Core vs Reference Decoder Benchmark")
	fmt.Println("==========================================")

	bench, err := benchmark.NewCoreVsReference()
	if err != nil {
		slog.Error("Failed to prepare benchmark", "error", err)
		os.Exit(1)
	}

	if *fixtures {
		addFixtureImages(bench)
	}
	for _, path := range flag.Args() {
		if err := bench.AddImageFile(path); err != nil {
			slog.Warn("Skipping image", "path", path, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	if _, err := bench.Run(ctx, os.Stdout, *iterations); err != nil {
		slog.Error("Benchmark failed", "error", err)
		os.Exit(1)
	}
	bench.PrintDetailedResults(os.Stdout)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, bench); err != nil {
			slog.Error("Failed to save results to file", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Results saved to: %s\n", *outputFile)
	}
}

// addFixtureImages adds the generated PNG fixtures when the testdata tree exists.
func addFixtureImages(bench *benchmark.CoreVsReference) {
	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Debug("No project root, skipping fixtures", "error", err)
		return
	}
	matches, _ := filepath.Glob(filepath.Join(root, "testdata", "images", "*.png"))
	for _, path := range matches {
		if filepath.Base(path) == "blank.png" {
			continue
		}
		if err := bench.AddImageFile(path); err != nil {
			slog.Warn("Skipping fixture", "path", path, "error", err)
			continue
		}
		slog.Debug("Added test image", "path", path)
	}
}

func saveResultsToFile(filename string, bench *benchmark.CoreVsReference) error {
	file, err := os.Create(filename) //nolint:gosec // G304: path from flag
	if err != nil {
		return err
	}
	if err := bench.WriteCSV(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
