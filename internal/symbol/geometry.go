// Package symbol reads the module grid of a rectified QR symbol: its
// version, its format information, its masks, and the reserved function
// pattern regions.
package symbol

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/qrscan/internal/locator"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

const (
	MinVersion = 1
	MaxVersion = 40
)

// ErrUnsupportedVersion is returned for versions outside 1..40.
var ErrUnsupportedVersion = errors.New("unsupported version")

// Geometry is the size of a symbol before its format information is known.
type Geometry struct {
	Version int `json:"version" yaml:"version"`
	Width   int `json:"width" yaml:"width"`
}

// NewGeometry validates version and derives the symbol width.
func NewGeometry(version int) (Geometry, error) {
	if version < MinVersion || version > MaxVersion {
		return Geometry{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return Geometry{Version: version, Width: WidthForVersion(version)}, nil
}

// WidthForVersion returns the number of modules per side.
func WidthForVersion(version int) int { return 17 + 4*version }

// InferGeometry estimates the version from the size and spacing of the
// finder patterns of a rectified symbol. The module size is the mean finder
// height over 7, and the centres of the upper finders are width-7 modules
// apart.
func InferGeometry(t locator.Triple) (Geometry, error) {
	heights := float64(t.UpperLeft.Height() + t.UpperRight.Height() + t.LowerLeft.Height())
	module := heights / 3 / 7
	if module <= 0 {
		return Geometry{}, fmt.Errorf("%w: zero module size", ErrUnsupportedVersion)
	}
	distance := utils.Distance(t.UpperLeft.Centroid(), t.UpperRight.Centroid())
	version := int(math.Round((distance/module - 10) / 4))
	return NewGeometry(version)
}

// WithFormat completes the geometry with the decoded format information.
func (g Geometry) WithFormat(f Format) Info {
	return Info{
		Version: g.Version,
		Width:   g.Width,
		MaskID:  f.MaskID,
		ECLevel: f.ECLevel,
	}
}

// Info describes a fully read symbol. It is immutable once built.
type Info struct {
	Version int     `json:"version" yaml:"version"`
	Width   int     `json:"width" yaml:"width"`
	MaskID  int     `json:"mask_id" yaml:"mask_id"`
	ECLevel ECLevel `json:"ec_level" yaml:"ec_level"`
}

func (i Info) String() string {
	return fmt.Sprintf("version %d (%dx%d), mask %d, EC %s", i.Version, i.Width, i.Width, i.MaskID, i.ECLevel)
}
