package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

const (
	// DownscaleTrigger is the side length both dimensions must exceed before
	// an input photo is shrunk.
	DownscaleTrigger = 1024
	// DownscaleTarget is the longest side after shrinking.
	DownscaleTarget = 1536

	// DarkLevel separates dark from light luminance values.
	DarkLevel = 128
)

// Downscale shrinks large photos so the longest side equals maxSide. Images
// where either side is at or below trigger are returned unchanged.
func Downscale(img image.Image, trigger, maxSide int) image.Image {
	if img == nil || trigger <= 0 || maxSide <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= trigger || b.Dy() <= trigger {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// Luminance returns the 8-bit gray value of c.
func Luminance(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}

// IsDark reports whether c is classified as a dark module colour.
func IsDark(c color.Color) bool {
	return Luminance(c) < DarkLevel
}

// Brightness returns the mean luminance of img scaled to [0, 1].
func Brightness(img image.Image) (float64, error) {
	if img == nil {
		return 0, &ImageProcessingError{Operation: "brightness", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Empty() {
		return 0, &ImageProcessingError{Operation: "brightness", Err: errors.New("empty image")}
	}
	gray := effect.Grayscale(img)
	gb := gray.Bounds()
	var sum uint64
	for y := gb.Min.Y; y < gb.Max.Y; y++ {
		for x := gb.Min.X; x < gb.Max.X; x++ {
			sum += uint64(Luminance(gray.At(x, y)))
		}
	}
	mean := float64(sum) / float64(gb.Dx()*gb.Dy())
	return mean / 255, nil
}

// Monochrome converts img to a two-level gray image. Pixels whose luminance is
// at or below 255*brightness become black, all others white. A brightness of
// zero or less selects the image's own mean brightness.
func Monochrome(img image.Image, brightness float64) (*image.Gray, error) {
	if brightness > 1 {
		return nil, &ImageProcessingError{
			Operation: "monochrome",
			Err:       fmt.Errorf("brightness %.3f outside [0, 1]", brightness),
		}
	}
	if brightness <= 0 {
		auto, err := Brightness(img)
		if err != nil {
			return nil, err
		}
		brightness = auto
	}
	threshold := math.Floor(255*brightness) + 1
	if threshold > 255 {
		threshold = 255
	}
	return segment.Threshold(img, uint8(threshold)), nil
}

// DarkBounds returns the tightest inclusive box around all dark pixels of img,
// in img's own coordinates. ok is false when img has no dark pixel.
func DarkBounds(img image.Image) (box Box, ok bool) {
	b := img.Bounds()
	box = Box{X1: b.Max.X, Y1: b.Max.Y, X2: b.Min.X - 1, Y2: b.Min.Y - 1}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !IsDark(img.At(x, y)) {
				continue
			}
			ok = true
			if x < box.X1 {
				box.X1 = x
			}
			if x > box.X2 {
				box.X2 = x
			}
			if y < box.Y1 {
				box.Y1 = y
			}
			if y > box.Y2 {
				box.Y2 = y
			}
		}
	}
	if !ok {
		return Box{}, false
	}
	return box, true
}
