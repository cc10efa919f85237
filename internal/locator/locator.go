// Package locator finds the three position detection patterns of a QR code
// among the labeled sprites of a monochrome image.
package locator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/MeKo-Tech/qrscan/internal/sprite"
)

// ErrNoQRCodeFound is returned when no inner/outer finder triple survives the
// search.
var ErrNoQRCodeFound = errors.New("no QR code found")

// Locator runs the staged finder-pattern search.
type Locator struct {
	cfg Config
}

// New creates a locator. The config is validated.
func New(cfg Config) (*Locator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid locator config: %w", err)
	}
	return &Locator{cfg: cfg}, nil
}

// Config returns the active thresholds.
func (l *Locator) Config() Config { return l.cfg }

// Locate labels the dark regions of a monochrome image and returns the outer
// finder triple.
func (l *Locator) Locate(ctx context.Context, img image.Image) (Triple, *sprite.Result, error) {
	if img == nil {
		return Triple{}, nil, sprite.ErrInvalidImage
	}
	if err := ctx.Err(); err != nil {
		return Triple{}, nil, err
	}
	res, err := sprite.Find(img, sprite.Options{Background: color.White})
	if err != nil {
		return Triple{}, nil, fmt.Errorf("failed to label sprites: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Triple{}, res, err
	}
	b := img.Bounds()
	t, err := l.LocateSprites(res.Sorted(), b.Dx(), b.Dy())
	return t, res, err
}

// LocateSprites runs stages A to G over sprites of an image of the given size.
// Sprites must be in ascending label order.
func (l *Locator) LocateSprites(sprites []sprite.Sprite, width, height int) (Triple, error) {
	cfg := l.cfg

	minSurface := MinSurface(width, height, cfg.VersionEstimate)
	candidates := FilterVisible(sprites, minSurface)
	slog.Debug("Locator stage", "stage", "visible", "min_surface", minSurface, "kept", len(candidates), "total", len(sprites))

	candidates = FilterSquare(candidates, cfg.SquareTolerance)
	slog.Debug("Locator stage", "stage", "square", "kept", len(candidates))

	candidates = FilterDense(candidates, cfg.DensityThreshold)
	slog.Debug("Locator stage", "stage", "dense", "kept", len(candidates))

	groups := GroupBySize(candidates, cfg.SizeThreshold)
	slog.Debug("Locator stage", "stage", "size_groups", "groups", len(groups))

	var pairGroups []PairGroup
	for _, g := range groups {
		pairGroups = append(pairGroups, PairsBySimilarDistance(g, cfg.DistanceThreshold)...)
	}
	slog.Debug("Locator stage", "stage", "distance_pairs", "pair_groups", len(pairGroups))

	triples := SearchTriples(pairGroups, cfg.OrthogonalityThreshold)
	slog.Debug("Locator stage", "stage", "triples", "triples", len(triples))

	outer, ok := MatchInnerOuter(triples, cfg.ColocationThreshold)
	if !ok {
		return Triple{}, ErrNoQRCodeFound
	}
	slog.Debug("Finder patterns located",
		"upper_left", outer.UpperLeft.Label,
		"upper_right", outer.UpperRight.Label,
		"lower_left", outer.LowerLeft.Label)
	return outer, nil
}
