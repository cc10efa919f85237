// Package rectify turns a located QR symbol upright and crops it to its
// module area.
package rectify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/sprite"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ErrEmptyCrop is returned when the symbol crop holds no dark pixel.
var ErrEmptyCrop = errors.New("empty symbol crop")

// Rectifier rotates and crops images around a finder triple.
type Rectifier struct {
	cfg  Config
	fill color.Color
}

// New creates a rectifier. The fill colour must be a valid hex colour.
func New(cfg Config) (*Rectifier, error) {
	fill := color.Color(color.White)
	if cfg.Fill != "" {
		c, err := colorful.Hex(cfg.Fill)
		if err != nil {
			return nil, fmt.Errorf("invalid fill colour %q: %w", cfg.Fill, err)
		}
		fill = c
	}
	return &Rectifier{cfg: cfg, fill: fill}, nil
}

// Result is an upright, cropped symbol.
type Result struct {
	Image image.Image
	// Triple holds the finder sprites moved into the rotated frame.
	Triple locator.Triple
	// Angle is the counter-clockwise rotation applied, in degrees.
	Angle float64
	// Crop is the finder-based crop in the rotated frame.
	Crop image.Rectangle
	// Trim is the dark-pixel box inside Crop, in crop coordinates.
	Trim utils.Box
}

// RotationAngle returns the counter-clockwise rotation in (-180, 180] that
// brings the UL->UR leg of t to horizontal, pointing right.
func RotationAngle(t locator.Triple) float64 {
	ul := t.UpperLeft.Centroid()
	ur := t.UpperRight.Centroid()
	left := utils.Point{X: ul.X - 1, Y: ul.Y}
	angle := utils.NormalizeDegrees(180 - utils.AngleBetween(ur, ul, left))
	// Round to micro-degrees so exact quarter turns stay exact.
	angle = math.Round(angle*1e6) / 1e6
	if angle > 180 {
		angle -= 360
	}
	return angle
}

// RotateTriple maps the sprites of t from an image with bounds src into the
// canvas of dst produced by imaging.Rotate with the given angle.
//
// The bounding box of a square tilted by a is |cos a|+|sin a| times its side,
// so each box is shrunk by that factor to the size of the upright finder.
func RotateTriple(t locator.Triple, angle float64, src, dst image.Rectangle) locator.Triple {
	rad := angle * math.Pi / 180
	inflation := math.Abs(math.Cos(rad)) + math.Abs(math.Sin(rad))
	center := utils.Point{
		X: float64(src.Min.X) + float64(src.Dx())/2 - 0.5,
		Y: float64(src.Min.Y) + float64(src.Dy())/2 - 0.5,
	}
	dstCenter := utils.Point{
		X: float64(dst.Min.X) + float64(dst.Dx())/2 - 0.5,
		Y: float64(dst.Min.Y) + float64(dst.Dy())/2 - 0.5,
	}
	move := func(s sprite.Sprite) sprite.Sprite {
		p := utils.RotatePoint(s.Centroid(), center, angle)
		w := int(math.Round(float64(s.Width()) / inflation))
		h := int(math.Round(float64(s.Height()) / inflation))
		return s.Reshape(utils.Point{X: p.X - center.X + dstCenter.X, Y: p.Y - center.Y + dstCenter.Y}, w, h)
	}
	return locator.Triple{
		UpperLeft:  move(t.UpperLeft),
		UpperRight: move(t.UpperRight),
		LowerLeft:  move(t.LowerLeft),
	}
}

// Apply rotates img so the symbol is upright, then crops it to the finder
// boxes and, when enabled, trims it to the dark pixels. The source image is
// never modified.
func (r *Rectifier) Apply(ctx context.Context, img image.Image, t locator.Triple) (*Result, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	angle := RotationAngle(t)
	rotated := imaging.Rotate(img, angle, r.fill)
	moved := RotateTriple(t, angle, img.Bounds(), rotated.Bounds())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crop := utils.ClampRect(image.Rect(
		moved.UpperLeft.X1, moved.UpperLeft.Y1,
		moved.UpperRight.X2+1, moved.LowerLeft.Y2+1,
	), rotated.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("%w: crop %v outside %v", ErrEmptyCrop, crop, rotated.Bounds())
	}
	out := utils.CropImageRect(rotated, crop)

	res := &Result{Triple: moved, Angle: angle, Crop: crop}
	box, ok := utils.DarkBounds(out)
	if !ok {
		return nil, ErrEmptyCrop
	}
	res.Trim = box
	if r.cfg.Trim {
		out = imaging.Crop(out, box.Rect())
	}
	res.Image = out

	slog.Debug("Symbol rectified",
		"angle", angle,
		"crop", crop.String(),
		"width", out.Bounds().Dx(),
		"height", out.Bounds().Dy())

	if r.cfg.DebugDir != "" {
		r.dumpDebug(rotated, moved, out)
	}
	return res, nil
}

func (r *Rectifier) dumpDebug(rotated image.Image, t locator.Triple, out image.Image) {
	boxes := []utils.Box{t.UpperLeft.Box(), t.UpperRight.Box(), t.LowerLeft.Box()}
	if err := dumpOverlayPNG(r.cfg.DebugDir, rotated, boxes); err != nil {
		slog.Warn("Failed to write rectify overlay", "dir", r.cfg.DebugDir, "error", err)
	}
	if err := dumpComparePNG(r.cfg.DebugDir, rotated, out); err != nil {
		slog.Warn("Failed to write rectify comparison", "dir", r.cfg.DebugDir, "error", err)
	}
}
