package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string  `json:"path,omitempty" yaml:"path,omitempty"`
	Format      string  `json:"format,omitempty" yaml:"format,omitempty"`
	SizeBytes   int64   `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	Width       int     `json:"width" yaml:"width"`
	Height      int     `json:"height" yaml:"height"`
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`
}

// DecodeImage decodes an image from r and applies its EXIF orientation tag,
// if any, so the returned pixels are upright.
func DecodeImage(r io.Reader) (image.Image, error) {
	if r == nil {
		return nil, &ImageProcessingError{Operation: "decode", Err: errors.New("nil reader")}
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, nil
}

// LoadImage opens and decodes an image file, returning the oriented image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, err := DecodeImage(f)
	if err != nil {
		return nil, ImageMetadata{}, err
	}

	meta := NewImageMetadata(img)
	meta.Path = path
	meta.SizeBytes = fi.Size()
	meta.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if f, ferr := imaging.FormatFromFilename(path); ferr == nil {
		meta.Format = strings.ToLower(f.String())
	}
	return img, meta, nil
}

// NewImageMetadata describes the pixel dimensions of img.
func NewImageMetadata(img image.Image) ImageMetadata {
	b := img.Bounds()
	meta := ImageMetadata{Width: b.Dx(), Height: b.Dy()}
	if b.Dy() > 0 {
		meta.AspectRatio = float64(b.Dx()) / float64(b.Dy())
	}
	return meta
}
