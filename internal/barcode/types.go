package barcode

import (
	"context"
	"errors"
	"image"
)

// ErrNotFound is returned when the backend finds no decodable symbol.
var ErrNotFound = errors.New("barcode: no symbol found")

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
)

// String returns the lower-case symbology name.
func (f Format) String() string {
	if f == FormatQR {
		return "qr"
	}
	return "unknown"
}

// Options controls backend decoding behavior.
type Options struct {
	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or outside the image, backends ignore it.
	ROI image.Rectangle

	// Multi returns every decoded symbol instead of only the first.
	Multi bool
}

// Result represents a decoded symbol.
type Result struct {
	Type    Format `json:"type"`
	Value   string `json:"value"`
	Version int    `json:"version"`
	// ECLevel is the error correction letter: L, M, Q or H.
	ECLevel string `json:"ec_level"`
	Mask    int    `json:"mask"`
	// Mode is the highest-valued data mode present in the payload.
	Mode string `json:"mode"`
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default backend implementation.
func NewBackend() (Backend, error) { return &goqrBackend{}, nil }
