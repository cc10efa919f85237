package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

var finderLabels = [3]string{"UL", "UR", "LL"}

// RenderOverlay draws the finder boxes and the decoded text over a copy of
// img. hexColor is parsed with go-colorful; empty selects red.
func RenderOverlay(img image.Image, res *ScanResult, hexColor string) (*image.RGBA, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if hexColor == "" {
		hexColor = "#ff0000"
	}
	col, err := colorful.Hex(hexColor)
	if err != nil {
		return nil, fmt.Errorf("invalid overlay colour %q: %w", hexColor, err)
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if res == nil {
		return dst, nil
	}

	thickness := max(1, min(b.Dx(), b.Dy())/200)
	if len(res.Finder) == len(finderLabels) {
		centres := make([]utils.Point, 0, len(res.Finder))
		for _, box := range res.Finder {
			c := box.Center()
			centres = append(centres, utils.Point{X: c.X - float64(b.Min.X), Y: c.Y - float64(b.Min.Y)})
		}
		utils.DrawPolygon(dst, centres, col, thickness)
	}
	for i, box := range res.Finder {
		r := box.Rect().Sub(b.Min)
		utils.DrawRect(dst, r, col, thickness)
		if i < len(finderLabels) {
			utils.DrawLabel(dst, r.Min.X, max(r.Min.Y-3, 12), finderLabels[i], col)
		}
	}
	if res.OK() {
		utils.DrawLabel(dst, 4, b.Dy()-4, truncate(res.Text, 60), col)
	}
	return dst, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
