package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// ProcessorConfig contains configuration for PDF processing.
type ProcessorConfig struct {
	// MaxWorkers bounds concurrent image scans. Zero means runtime.NumCPU().
	MaxWorkers int
	// AllowPasswords decrypts encrypted documents with Credentials.
	AllowPasswords bool
	Credentials    *PasswordCredentials
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{AllowPasswords: true}
}

// Processor scans the images embedded in PDF documents.
type Processor struct {
	pipeline        *pipeline.Pipeline
	config          *ProcessorConfig
	passwordHandler *PasswordHandler
}

// NewProcessor creates a PDF processor on top of a scan pipeline.
func NewProcessor(pl *pipeline.Pipeline, config *ProcessorConfig) (*Processor, error) {
	if pl == nil {
		return nil, errors.New("nil pipeline")
	}
	if config == nil {
		config = DefaultProcessorConfig()
	}
	return &Processor{
		pipeline:        pl,
		config:          config,
		passwordHandler: NewPasswordHandler(config.Credentials),
	}, nil
}

// Config returns the processor configuration.
func (p *Processor) Config() *ProcessorConfig { return p.config }

// ProcessFile extracts the images of the selected pages and scans each one.
// Scan failures are recorded per image; only extraction problems and
// cancellation fail the call.
func (p *Processor) ProcessFile(ctx context.Context, filename, pageRange string) (*DocumentResult, error) {
	startTime := time.Now()

	workingFilename := filename
	if p.config.AllowPasswords {
		decrypted, err := p.passwordHandler.DecryptPDF(filename, p.config.Credentials)
		if err != nil {
			return nil, err
		}
		workingFilename = decrypted
		defer func() { _ = p.passwordHandler.CleanupTempFile(decrypted) }()
	}

	totalPages, err := PageCount(workingFilename)
	if err != nil {
		return nil, err
	}
	selected, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}
	if err := CheckPageRange(selected, totalPages); err != nil {
		return nil, err
	}

	extractStart := time.Now()
	pageImages, err := ExtractImages(workingFilename, pageRange)
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(extractStart)

	scanStart := time.Now()
	pages, err := p.scanPages(ctx, filename, pageImages)
	if err != nil {
		return nil, err
	}
	scanTime := time.Since(scanStart)

	slog.Debug("PDF processed", "file", filename, "pages", len(pages), "duration", time.Since(startTime))
	return &DocumentResult{
		Filename:   filename,
		TotalPages: totalPages,
		Pages:      pages,
		Processing: ProcessingInfo{
			ExtractionTimeMs: extractTime.Milliseconds(),
			ScanTimeMs:       scanTime.Milliseconds(),
			TotalTimeMs:      time.Since(startTime).Milliseconds(),
		},
	}, nil
}

// ProcessFiles processes multiple PDF files in order.
func (p *Processor) ProcessFiles(ctx context.Context, filenames []string, pageRange string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, 0, len(filenames))
	for _, filename := range filenames {
		result, err := p.ProcessFile(ctx, filename, pageRange)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", filename, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// scanPages scans every image concurrently on a bounded errgroup. Pages come
// back in ascending order; images keep their extraction order.
func (p *Processor) scanPages(ctx context.Context, filename string, pageImages map[int][]image.Image) ([]PageResult, error) {
	pageList := make([]int, 0, len(pageImages))
	for n := range pageImages {
		pageList = append(pageList, n)
	}
	sort.Ints(pageList)

	workers := p.config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	pages := make([]PageResult, len(pageList))
	for pi, pageNum := range pageList {
		images := pageImages[pageNum]
		pages[pi] = PageResult{PageNumber: pageNum, Images: make([]*pipeline.ScanResult, len(images))}
		for ii, img := range images {
			b := img.Bounds()
			pages[pi].Width = max(pages[pi].Width, b.Dx())
			pages[pi].Height = max(pages[pi].Height, b.Dy())

			g.Go(func() error {
				res, _ := p.pipeline.ProcessImageContext(gctx, img)
				if err := gctx.Err(); err != nil {
					return err
				}
				res.Path = filename
				res.Page = pageNum
				res.Index = ii + 1
				pages[pi].Images[ii] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
