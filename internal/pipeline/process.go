package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/decoder"
	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/sprite"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Stage names used in timings and logs.
const (
	StageDownscale  = "downscale"
	StageMonochrome = "monochrome"
	StageLocate     = "locate"
	StageRectify    = "rectify"
	StageGeometry   = "geometry"
	StageSample     = "sample"
	StageFormat     = "format"
	StageUnmask     = "unmask"
	StageExtract    = "extract"
	StageDecode     = "decode"
	StageFallback   = "fallback"
)

// ProcessImage scans a single image.
func (p *Pipeline) ProcessImage(img image.Image) (*ScanResult, error) {
	return p.ProcessImageContext(context.Background(), img)
}

// ProcessImageContext scans a single image with cancellation support.
// The returned result is never nil; on failure its Error field mirrors the
// returned error.
func (p *Pipeline) ProcessImageContext(ctx context.Context, img image.Image) (*ScanResult, error) {
	start := time.Now()
	res := &ScanResult{}
	if img == nil {
		res.Error = newScanError(sprite.ErrInvalidImage)
		p.profiler.Record(res)
		return res, sprite.ErrInvalidImage
	}
	res.Image = utils.NewImageMetadata(img)

	var timings common.Timings
	err := p.scan(ctx, img, res, &timings)
	if err != nil && p.backend != nil && ctx.Err() == nil {
		ferr := p.fallback(ctx, img, res, &timings)
		if ferr == nil {
			slog.Debug("Reference decoder recovered scan", "core_error", err)
			err = nil
		} else {
			slog.Debug("Reference decoder failed", "error", ferr)
		}
	}

	res.Timings = timings.Stages()
	res.TotalNs = time.Since(start).Nanoseconds()
	if err != nil {
		res.Source = ""
		res.Error = newScanError(err)
	}
	p.profiler.Record(res)
	return res, err
}

// scan runs the core stages. It never retries.
func (p *Pipeline) scan(ctx context.Context, img image.Image, res *ScanResult, ts *common.Timings) error {
	stop := ts.Start(StageDownscale)
	work := utils.Downscale(img, p.cfg.Image.DownscaleTrigger, p.cfg.Image.MaxSide)
	logStage(StageDownscale, stop(), "width", work.Bounds().Dx(), "height", work.Bounds().Dy())
	if err := ctx.Err(); err != nil {
		return err
	}

	stop = ts.Start(StageMonochrome)
	mono, err := utils.Monochrome(work, p.cfg.Image.Brightness)
	logStage(StageMonochrome, stop())
	if err != nil {
		return fmt.Errorf("monochrome: %w", err)
	}

	stop = ts.Start(StageLocate)
	triple, _, err := p.locator.Locate(ctx, mono)
	logStage(StageLocate, stop())
	if err != nil {
		return fmt.Errorf("locate finder patterns: %w", err)
	}
	res.Finder = finderBoxes(triple, img.Bounds(), mono.Bounds())

	stop = ts.Start(StageRectify)
	rr, err := p.rectifier.Apply(ctx, mono, triple)
	logStage(StageRectify, stop())
	if err != nil {
		return fmt.Errorf("rectify: %w", err)
	}
	res.Angle = rr.Angle

	stop = ts.Start(StageGeometry)
	geom, err := symbol.InferGeometry(rr.Triple)
	logStage(StageGeometry, stop(), "version", geom.Version)
	if err != nil {
		return fmt.Errorf("infer geometry: %w", err)
	}
	res.Version, res.Width = geom.Version, geom.Width
	if err := ctx.Err(); err != nil {
		return err
	}

	stop = ts.Start(StageSample)
	bits, err := symbol.Sample(rr.Image, geom.Width)
	logStage(StageSample, stop())
	if err != nil {
		return fmt.Errorf("sample grid: %w", err)
	}

	stop = ts.Start(StageFormat)
	format, err := symbol.ReadFormat(bits)
	logStage(StageFormat, stop())
	if err != nil {
		return fmt.Errorf("read format: %w", err)
	}
	info := geom.WithFormat(format)
	res.MaskID, res.ECLevel = info.MaskID, info.ECLevel.String()

	stop = ts.Start(StageUnmask)
	data, err := symbol.Unmask(bits, info)
	logStage(StageUnmask, stop())
	if err != nil {
		return fmt.Errorf("unmask: %w", err)
	}

	stop = ts.Start(StageExtract)
	stream, err := decoder.Extract(data, info)
	logStage(StageExtract, stop(), "bits", stream.Len())
	if err != nil {
		return fmt.Errorf("extract codewords: %w", err)
	}

	stop = ts.Start(StageDecode)
	seg, err := decoder.Decode(stream, info)
	logStage(StageDecode, stop())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	res.Source = SourceCore
	res.Text = seg.Text
	res.Mode = seg.Mode.String()
	res.Length = seg.Length
	return nil
}

// fallback asks the reference backend. Only drivers reach it, after the core
// has failed.
func (p *Pipeline) fallback(ctx context.Context, img image.Image, res *ScanResult, ts *common.Timings) error {
	stop := ts.Start(StageFallback)
	out, err := p.backend.Decode(ctx, img, barcode.Options{})
	logStage(StageFallback, stop())
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return barcode.ErrNotFound
	}
	r := out[0]
	res.Source = SourceReference
	res.Text = r.Value
	res.Mode = r.Mode
	res.Length = len(r.Value)
	res.Version = r.Version
	res.Width = 0
	if r.Version > 0 {
		res.Width = symbol.WidthForVersion(r.Version)
	}
	res.MaskID = r.Mask
	res.ECLevel = r.ECLevel
	return nil
}

func logStage(stage string, d time.Duration, args ...any) {
	slog.Debug("Pipeline stage", append([]any{"stage", stage, "duration", d}, args...)...)
}

// finderBoxes maps the triple from the working image back to source pixels.
func finderBoxes(t locator.Triple, src, work image.Rectangle) []utils.Box {
	fx := float64(src.Dx()) / float64(max(work.Dx(), 1))
	fy := float64(src.Dy()) / float64(max(work.Dy(), 1))
	scale := func(v int, f float64, origin int) int { return origin + int(float64(v)*f) }

	sprites := t.Sprites()
	boxes := make([]utils.Box, 0, len(sprites))
	for _, s := range sprites {
		boxes = append(boxes, utils.NewBox(
			scale(s.X1, fx, src.Min.X),
			scale(s.Y1, fy, src.Min.Y),
			scale(s.X2+1, fx, src.Min.X)-1,
			scale(s.Y2+1, fy, src.Min.Y)-1,
		))
	}
	return boxes
}
