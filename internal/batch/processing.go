package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// loadImage opens path on fs and decodes it with EXIF orientation applied.
func loadImage(fs afero.Fs, path string) (image.Image, utils.ImageMetadata, error) {
	if !utils.IsSupportedImage(path) {
		err := &utils.ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported image format: %s", path)}
		return nil, utils.ImageMetadata{}, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, utils.ImageMetadata{}, &utils.ImageProcessingError{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	img, err := utils.DecodeImage(f)
	if err != nil {
		return nil, utils.ImageMetadata{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	meta := utils.NewImageMetadata(img)
	meta.Path = path
	meta.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if fi, err := f.Stat(); err == nil {
		meta.SizeBytes = fi.Size()
	}
	return img, meta, nil
}

// overlayPath maps an input file to its overlay PNG inside dir.
func overlayPath(dir, path string) string {
	base := filepath.Base(path)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
}

// saveOverlay renders the finder boxes over img and writes the PNG to fs.
func saveOverlay(fs afero.Fs, img image.Image, res *pipeline.ScanResult, overlayDir, hexColor string) error {
	ov, err := pipeline.RenderOverlay(img, res, hexColor)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(overlayDir, 0o750); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, ov); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return afero.WriteFile(fs, overlayPath(overlayDir, res.Path), buf.Bytes(), 0o600)
}

// loaded is an input that decoded into pixels.
type loaded struct {
	index int
	img   image.Image
	meta  utils.ImageMetadata
}

// processFiles loads every path, scans the loadable ones on the pipeline
// worker pool and returns one result per path in input order.
func processFiles(ctx context.Context, fs afero.Fs, pl *pipeline.Pipeline, paths []string, config *Config) ([]*pipeline.ScanResult, error) {
	results := make([]*pipeline.ScanResult, len(paths))
	inputs := make([]loaded, 0, len(paths))

	for i, path := range paths {
		img, meta, err := loadImage(fs, path)
		if err != nil {
			if !config.ContinueOnError {
				return nil, err
			}
			slog.Warn("Skipping unreadable image", "file", path, "error", err)
			results[i] = &pipeline.ScanResult{
				Path:  path,
				Error: &pipeline.ScanError{Kind: pipeline.ErrorKind(err), Message: err.Error()},
			}
			continue
		}
		inputs = append(inputs, loaded{index: i, img: img, meta: meta})
	}

	if len(inputs) > 0 {
		if err := scanLoaded(ctx, pl, inputs, paths, results, config); err != nil {
			return nil, err
		}
	}

	if config.OverlayDir != "" {
		for _, in := range inputs {
			if err := saveOverlay(fs, in.img, results[in.index], config.OverlayDir, config.OverlayColor); err != nil {
				slog.Warn("Failed to write overlay", "file", paths[in.index], "error", err)
			}
		}
	}
	return results, nil
}

// stopOnError cancels the run on the first failed scan.
type stopOnError struct {
	pipeline.NoOpProgressCallback
	cancel context.CancelFunc
	first  error
	index  int
}

func (s *stopOnError) OnError(index int, err error) {
	if s.first == nil {
		s.first, s.index = err, index
		s.cancel()
	}
}

func scanLoaded(ctx context.Context, pl *pipeline.Pipeline, inputs []loaded, paths []string,
	results []*pipeline.ScanResult, config *Config) error {
	imgs := make([]image.Image, len(inputs))
	for i, in := range inputs {
		imgs[i] = in.img
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pcfg := pl.Config().Parallel
	stop := &stopOnError{cancel: cancel}
	if !config.ContinueOnError {
		if pcfg.ProgressCallback != nil {
			pcfg.ProgressCallback = pipeline.MultiProgressCallback{pcfg.ProgressCallback, stop}
		} else {
			pcfg.ProgressCallback = stop
		}
	}
	pcfg.ErrorHandler = func(i int, err error) {
		slog.Warn("Scan failed", "file", paths[inputs[i].index], "kind", pipeline.ErrorKind(err))
	}

	start := time.Now()
	scanned, err := pl.ProcessImagesParallel(runCtx, imgs, pcfg)
	slog.Debug("Batch scan finished", "count", len(imgs), "duration", time.Since(start))

	if stop.first != nil {
		return fmt.Errorf("%s: %w", paths[inputs[stop.index].index], stop.first)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if scanned == nil && err != nil {
		return err
	}

	for i, res := range scanned {
		in := inputs[i]
		res.Path = paths[in.index]
		res.Image = in.meta
		results[in.index] = res
	}
	return nil
}

// errNoImages is returned when discovery yields nothing to scan.
var errNoImages = errors.New("no image files found")
