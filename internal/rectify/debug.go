package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

func writePNG(dir, prefix string, img image.Image) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, time.Now().UnixNano()))
	f, err := os.Create(path) //nolint:gosec // G304: path is constructed from timestamp in debug directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)
	return canvas
}

// dumpOverlayPNG writes src with the finder boxes outlined in red.
func dumpOverlayPNG(dir string, src image.Image, boxes []utils.Box) error {
	canvas := toRGBA(src)
	off := src.Bounds().Min
	for _, b := range boxes {
		utils.DrawRect(canvas, b.Rect().Sub(off), color.RGBA{255, 0, 0, 255}, 2)
	}
	return writePNG(dir, "rect_overlay", canvas)
}

// dumpComparePNG writes the rotated image and the final crop side by side.
func dumpComparePNG(dir string, src, dst image.Image) error {
	sb := src.Bounds()
	db := dst.Bounds()
	gap := 10
	outW := sb.Dx() + gap + db.Dx()
	outH := max(sb.Dy(), db.Dy())
	canvas := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 128}), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, sb.Dx(), sb.Dy()), src, sb.Min, draw.Src)
	xoff := sb.Dx() + gap
	draw.Draw(canvas, image.Rect(xoff, 0, xoff+db.Dx(), db.Dy()), dst, db.Min, draw.Src)
	// border around the crop
	utils.DrawRect(canvas, image.Rect(xoff, 0, xoff+db.Dx(), db.Dy()), color.RGBA{0, 255, 0, 255}, 1)
	return writePNG(dir, "rect_compare", canvas)
}
