package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// fixture records what a generated file is expected to decode to.
type fixture struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Expected []string `json:"expected"`
	Mode     string   `json:"mode,omitempty"`
	Rotation float64  `json:"rotation,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir       = flag.String("out", "testdata", "output directory, relative to the project root")
		generatePDFs = flag.Bool("pdfs", true, "Generate PDF fixtures")
		verbose      = flag.Bool("v", false, "Verbose output")
		help         = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate QR code fixtures for qrscan testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Project root", "path", root, "out", *outDir)
	}

	fixtures, err := generateImages(*outDir)
	if err != nil {
		slog.Error("Failed to generate images", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated image fixtures", "count", len(fixtures))

	if *generatePDFs {
		pdfs, err := generatePDFFixtures(*outDir)
		if err != nil {
			slog.Error("Failed to generate PDFs", "error", err)
			os.Exit(1)
		}
		fixtures = append(fixtures, pdfs...)
		slog.Info("Generated PDF fixtures", "count", len(pdfs))
	}

	if err := writeManifest(filepath.Join(*outDir, "fixtures.json"), fixtures); err != nil {
		slog.Error("Failed to write manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "dir", *outDir)
}

func generateImages(outDir string) ([]fixture, error) {
	dir := filepath.Join(outDir, "images")
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	samples := []struct {
		name, content, mode string
		level               qrcode.RecoveryLevel
	}{
		{"numeric", "0123456789012", "NUMERIC", qrcode.Medium},
		{"alphanumeric", "HELLO WORLD $%*+-./:", "ALPHANUMERIC", qrcode.High},
		{"byte", "https://example.com/ticket?id=42", "BYTE", qrcode.Low},
		{"byte_high", "qrscan fixture", "BYTE", qrcode.Highest},
	}

	var out []fixture
	for _, s := range samples {
		cfg := testutil.DefaultQRConfig(s.content)
		cfg.Level = s.level
		file := filepath.Join(dir, s.name+".png")
		if err := writeQR(cfg, file); err != nil {
			return nil, err
		}
		out = append(out, fixture{Name: s.name, File: file, Expected: []string{s.content}, Mode: s.mode})
	}

	for _, angle := range []float64{5, 15, 30, 90} {
		cfg := testutil.DefaultQRConfig("ROTATED")
		cfg.Margin = 40
		cfg.Rotation = angle
		name := fmt.Sprintf("rotated_%.0f", angle)
		file := filepath.Join(dir, name+".png")
		if err := writeQR(cfg, file); err != nil {
			return nil, err
		}
		out = append(out, fixture{Name: name, File: file, Expected: []string{"ROTATED"}, Rotation: angle})
	}

	blank := filepath.Join(dir, "blank.png")
	if err := imaging.Save(imaging.New(320, 240, image.White.C), blank); err != nil {
		return nil, fmt.Errorf("failed to save blank image: %w", err)
	}
	out = append(out, fixture{Name: "blank", File: blank})
	return out, nil
}

func writeQR(cfg testutil.QRConfig, file string) error {
	img, err := testutil.GenerateQR(cfg)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, file); err != nil {
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	return nil
}

func generatePDFFixtures(outDir string) ([]fixture, error) {
	dir := filepath.Join(outDir, "pdfs")
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create pdf directory: %w", err)
	}

	docs := []struct {
		name     string
		contents []string
	}{
		{"single_page", []string{"PDF PAGE"}},
		{"three_pages", []string{"FIRST", "SECOND", "THIRD"}},
	}

	var out []fixture
	for _, d := range docs {
		name, contents := d.name, d.contents
		pages := make([][]image.Image, len(contents))
		for i, c := range contents {
			img, err := testutil.GenerateQR(testutil.DefaultQRConfig(c))
			if err != nil {
				return nil, err
			}
			pages[i] = []image.Image{img}
		}
		data, err := testutil.EncodePDF(pages)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		file := filepath.Join(dir, name+".pdf")
		if err := os.WriteFile(file, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file, err)
		}
		out = append(out, fixture{Name: name, File: file, Expected: contents})
	}
	return out, nil
}

func writeManifest(path string, fixtures []fixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
