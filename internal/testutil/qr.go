package testutil

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/liyue201/goqr"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/require"
)

// QRConfig describes a generated QR fixture.
type QRConfig struct {
	Content  string
	Level    qrcode.RecoveryLevel
	ModulePx int     // pixels per module
	Margin   int     // extra white border in pixels around the quiet zone
	Rotation float64 // counter-clockwise rotation in degrees
}

// DefaultQRConfig returns a 10px-per-module, medium recovery fixture.
func DefaultQRConfig(content string) QRConfig {
	return QRConfig{
		Content:  content,
		Level:    qrcode.Medium,
		ModulePx: 10,
	}
}

// GenerateQR renders content as a pixel-exact QR code. Every module is a
// ModulePx square, so module boundaries fall on whole pixels.
func GenerateQR(cfg QRConfig) (image.Image, error) {
	if cfg.ModulePx <= 0 {
		return nil, fmt.Errorf("invalid module size %d", cfg.ModulePx)
	}
	q, err := qrcode.New(cfg.Content, cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q: %w", cfg.Content, err)
	}
	bitmap := q.Bitmap()
	size := len(bitmap)*cfg.ModulePx + 2*cfg.Margin

	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := cfg.Margin + x*cfg.ModulePx
			y0 := cfg.Margin + y*cfg.ModulePx
			for py := y0; py < y0+cfg.ModulePx; py++ {
				for px := x0; px < x0+cfg.ModulePx; px++ {
					img.SetGray(px, py, color.Gray{Y: 0})
				}
			}
		}
	}

	if cfg.Rotation != 0 {
		return imaging.Rotate(img, cfg.Rotation, color.White), nil
	}
	return img, nil
}

// QRFixture generates a default fixture for content.
func QRFixture(t *testing.T, content string) image.Image {
	t.Helper()

	img, err := GenerateQR(DefaultQRConfig(content))
	require.NoError(t, err)
	return img
}

// QRFixturePNG generates a default fixture and returns it as PNG bytes.
func QRFixturePNG(t *testing.T, content string) []byte {
	t.Helper()
	return EncodePNG(t, QRFixture(t, content))
}

// WriteQRFixture saves a default fixture for content as dir/name.
func WriteQRFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	SaveImage(t, QRFixture(t, content), path)
	return path
}

// ReferenceDecode decodes img with the goqr reference decoder and returns
// the payload of the first symbol.
func ReferenceDecode(img image.Image) (string, error) {
	codes, err := goqr.Recognize(img)
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "", goqr.ErrNoQRCode
	}
	return string(codes[0].Payload), nil
}
