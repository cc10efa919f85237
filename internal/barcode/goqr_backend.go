package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/liyue201/goqr"
)

type goqrBackend struct{}

// goqr reports EC levels by their raw two-bit field.
var goqrECLevels = map[int]string{0: "M", 1: "L", 2: "H", 3: "Q"}

var goqrModes = map[int]string{1: "NUMERIC", 2: "ALPHANUMERIC", 4: "BYTE", 8: "KANJI"}

const goqrNumeric = 1

// restoreNumericGroups undoes goqr's digit order in numeric mode: it emits
// each group of three digits (and the trailing group of one or two) least
// significant digit first. Exact for symbols holding one numeric segment.
func restoreNumericGroups(p []byte) []byte {
	out := slices.Clone(p)
	for i := 0; i < len(out); i += 3 {
		slices.Reverse(out[i:min(i+3, len(out))])
	}
	return out
}

func (b *goqrBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.ROI.Empty() {
		if roi, ok := subImage(img, opts.ROI); ok {
			img = roi
		}
	}

	codes, err := goqr.Recognize(img)
	if err != nil {
		if errors.Is(err, goqr.ErrNoQRCode) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("barcode: recognize: %w", err)
	}
	if len(codes) == 0 {
		return nil, ErrNotFound
	}

	out := make([]Result, 0, len(codes))
	for _, c := range codes {
		payload := c.Payload
		if c.DataType == goqrNumeric {
			payload = restoreNumericGroups(payload)
		}
		out = append(out, Result{
			Type:    FormatQR,
			Value:   string(payload),
			Version: c.Version,
			ECLevel: goqrECLevels[c.EccLevel],
			Mask:    c.Mask,
			Mode:    goqrModes[c.DataType],
		})
		if !opts.Multi {
			break
		}
	}
	return out, nil
}

func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, false
	}
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r), true
	}
	return nil, false
}
