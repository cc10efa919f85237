package rectify

import (
	"context"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/sprite"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

func box(label, x, y, side int) sprite.Sprite {
	return sprite.Sprite{Label: label, X1: x, Y1: y, X2: x + side - 1, Y2: y + side - 1, Pixels: side * side}
}

func fill(img *image.Gray, x1, y1, x2, y2 int, v uint8) {
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

// finderImage draws three 70px position patterns on a white 300x300 canvas.
func finderImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 300, 300))
	fill(img, 0, 0, 300, 300, 255)
	for _, p := range [][2]int{{20, 20}, {200, 20}, {20, 200}} {
		x, y := p[0], p[1]
		fill(img, x, y, x+70, y+70, 0)
		fill(img, x+10, y+10, x+60, y+60, 255)
		fill(img, x+20, y+20, x+50, y+50, 0)
	}
	return img
}

func locate(t *testing.T, img image.Image) locator.Triple {
	t.Helper()
	loc, err := locator.New(locator.DefaultConfig())
	require.NoError(t, err)
	triple, _, err := loc.Locate(context.Background(), img)
	require.NoError(t, err)
	return triple
}

func TestRotationAngle(t *testing.T) {
	tests := []struct {
		name string
		ur   sprite.Sprite
		want float64
	}{
		{"upright", box(2, 200, 100, 10), 0},
		{"upper right below", box(2, 100, 200, 10), 90},
		{"upper right above", box(2, 100, 0, 10), -90},
		{"upside down", box(2, 0, 100, 10), 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triple := locator.Triple{UpperLeft: box(1, 100, 100, 10), UpperRight: tt.ur}
			assert.InDelta(t, tt.want, RotationAngle(triple), 1e-9)
		})
	}
}

func TestRotateTriple_QuarterTurn(t *testing.T) {
	s := box(1, 8, 8, 5)
	triple := locator.Triple{UpperLeft: s, UpperRight: s, LowerLeft: s}

	moved := RotateTriple(triple, 90, image.Rect(0, 0, 100, 50), image.Rect(0, 0, 50, 100))
	// imaging.Rotate90 maps (x, y) to (y, w-1-x).
	assert.Equal(t, utils.Point{X: 10, Y: 89}, moved.UpperLeft.Centroid())
	assert.Equal(t, s.Width(), moved.UpperLeft.Width())
	assert.Equal(t, s.Height(), moved.UpperLeft.Height())
	assert.Equal(t, s.Pixels, moved.UpperLeft.Pixels)
}

func TestApply_Upright(t *testing.T) {
	img := finderImage()
	triple := locate(t, img)

	r, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := r.Apply(context.Background(), img, triple)
	require.NoError(t, err)

	assert.InDelta(t, 0, res.Angle, 1e-9)
	assert.Equal(t, image.Rect(20, 20, 270, 270), res.Crop)
	assert.Equal(t, 250, res.Image.Bounds().Dx())
	assert.Equal(t, 250, res.Image.Bounds().Dy())
	assert.Equal(t, triple, res.Triple)
}

func TestApply_Tilted(t *testing.T) {
	upright := finderImage()
	tilted, err := utils.Monochrome(imaging.Rotate(upright, 20, color.White), 0.5)
	require.NoError(t, err)
	before := imaging.Clone(tilted)

	triple := locate(t, tilted)

	r, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := r.Apply(context.Background(), tilted, triple)
	require.NoError(t, err)

	assert.InDelta(t, -20, res.Angle, 1.5)
	assert.InDelta(t, 250, res.Image.Bounds().Dx(), 8)
	assert.InDelta(t, 250, res.Image.Bounds().Dy(), 8)
	// The tilted boxes are about 90px; upright finders are 70px.
	assert.Greater(t, triple.UpperLeft.Width(), 85)
	for _, s := range []sprite.Sprite{res.Triple.UpperLeft, res.Triple.UpperRight, res.Triple.LowerLeft} {
		assert.InDelta(t, 70, s.Width(), 4)
		assert.InDelta(t, 70, s.Height(), 4)
	}
	assert.True(t, testutil.CompareImages(before, tilted, 0), "source image was modified")
}

func TestApply_EmptyCrop(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	fill(img, 0, 0, 100, 100, 255)

	r, err := New(DefaultConfig())
	require.NoError(t, err)

	triple := locator.Triple{
		UpperLeft:  box(1, 10, 10, 10),
		UpperRight: box(2, 60, 10, 10),
		LowerLeft:  box(3, 10, 60, 10),
	}
	_, err = r.Apply(context.Background(), img, triple)
	assert.ErrorIs(t, err, ErrEmptyCrop)

	far := locator.Triple{
		UpperLeft:  box(1, 500, 500, 10),
		UpperRight: box(2, 600, 500, 10),
		LowerLeft:  box(3, 500, 600, 10),
	}
	_, err = r.Apply(context.Background(), img, far)
	assert.ErrorIs(t, err, ErrEmptyCrop)
}

func TestApply_NoTrim(t *testing.T) {
	img := finderImage()
	// Extend the canvas so the crop box has a light margin on the right.
	triple := locate(t, img)
	triple.UpperRight.X2 += 5

	cfg := DefaultConfig()
	cfg.Trim = false
	r, err := New(cfg)
	require.NoError(t, err)
	res, err := r.Apply(context.Background(), img, triple)
	require.NoError(t, err)
	assert.Equal(t, 255, res.Image.Bounds().Dx())
	assert.Equal(t, utils.NewBox(0, 0, 249, 249), res.Trim)
}

func TestApply_DebugDir(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	cfg := DefaultConfig()
	cfg.DebugDir = dir
	r, err := New(cfg)
	require.NoError(t, err)

	img := finderImage()
	_, err = r.Apply(context.Background(), img, locate(t, img))
	require.NoError(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestApply_Errors(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = r.Apply(context.Background(), nil, locator.Triple{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Apply(ctx, finderImage(), locator.Triple{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = New(Config{Fill: "not-a-colour"})
	assert.Error(t, err)
}
