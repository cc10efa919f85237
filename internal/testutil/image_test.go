package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestImageConfig(t *testing.T) {
	config := DefaultTestImageConfig()
	assert.Equal(t, "No code here", config.Text)
	assert.Equal(t, SmallSize, config.Size)
	assert.Equal(t, color.White, config.Background)
	assert.InDelta(t, 0.0, config.Rotation, 0.0001)
}

func TestGenerateTextImage(t *testing.T) {
	config := DefaultTestImageConfig()
	config.Size = MediumSize

	img, err := GenerateTextImage(config)
	require.NoError(t, err)
	assert.Equal(t, MediumSize.Width, img.Bounds().Dx())
	assert.Equal(t, MediumSize.Height, img.Bounds().Dy())

	config.Rotation = 30
	rotated, err := GenerateTextImage(config)
	require.NoError(t, err)
	assert.Greater(t, rotated.Bounds().Dx(), MediumSize.Width)
}

func TestSaveAndLoadImage(t *testing.T) {
	img := CreateTestImage(40, 30, color.Black)
	path := filepath.Join(CreateTempDir(t), "nested", "img.png")

	SaveImage(t, img, path)
	loaded, err := imaging.Open(path)
	require.NoError(t, err)
	assert.True(t, CompareImages(img, loaded, 0.001))
}

func TestCompareImages(t *testing.T) {
	white := CreateTestImage(10, 10, color.White)
	black := CreateTestImage(10, 10, color.Black)
	small := CreateTestImage(5, 5, color.White)

	assert.True(t, CompareImages(white, white, 0))
	assert.False(t, CompareImages(white, black, 0.1))
	assert.False(t, CompareImages(white, small, 1))
}

func TestGenerateQR(t *testing.T) {
	img, err := GenerateQR(DefaultQRConfig("Hello"))
	require.NoError(t, err)

	// Version 1: 21 modules plus a 4-module quiet zone per side.
	assert.Equal(t, 290, img.Bounds().Dx())
	assert.Equal(t, 290, img.Bounds().Dy())
	assert.Equal(t, color.Gray{Y: 0}, color.GrayModel.Convert(img.At(40, 40)))
	assert.Equal(t, color.Gray{Y: 255}, color.GrayModel.Convert(img.At(39, 39)))

	cfg := DefaultQRConfig("Hello")
	cfg.Margin = 15
	img, err = GenerateQR(cfg)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())

	_, err = GenerateQR(QRConfig{Content: "x", ModulePx: 0})
	assert.Error(t, err)
}

func TestReferenceDecode(t *testing.T) {
	text, err := ReferenceDecode(QRFixture(t, "Hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	_, err = ReferenceDecode(CreateTestImage(50, 50, color.White))
	assert.Error(t, err)
}

func TestWriteQRFixture(t *testing.T) {
	dir := CreateTempDir(t)
	path := WriteQRFixture(t, dir, "hello.png", "Hello")
	assert.FileExists(t, path)

	saved, err := imaging.Open(path)
	require.NoError(t, err)
	text, err := ReferenceDecode(saved)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.NotEmpty(t, QRFixturePNG(t, "Hello"))
}
