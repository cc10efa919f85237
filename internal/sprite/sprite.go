// Package sprite segments an image into connected foreground regions.
package sprite

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Sprite is a connected region of foreground pixels. Coordinates are
// inclusive pixel positions in the labeled image.
type Sprite struct {
	Label  int `json:"label" yaml:"label"`
	X1     int `json:"x1" yaml:"x1"`
	Y1     int `json:"y1" yaml:"y1"`
	X2     int `json:"x2" yaml:"x2"`
	Y2     int `json:"y2" yaml:"y2"`
	Pixels int `json:"pixels" yaml:"pixels"`
}

// Width returns the bounding box width in pixels.
func (s Sprite) Width() int { return s.X2 - s.X1 + 1 }

// Height returns the bounding box height in pixels.
func (s Sprite) Height() int { return s.Y2 - s.Y1 + 1 }

// Surface returns the bounding box area.
func (s Sprite) Surface() int { return s.Width() * s.Height() }

// Density returns the ratio of foreground pixels to bounding box area.
func (s Sprite) Density() float64 {
	return float64(s.Pixels) / float64(s.Surface())
}

// Centroid is the centre of the bounding box, not of the pixel mass.
func (s Sprite) Centroid() utils.Point {
	return utils.Point{X: float64(s.X1+s.X2) / 2, Y: float64(s.Y1+s.Y2) / 2}
}

// Box returns the bounding box.
func (s Sprite) Box() utils.Box {
	return utils.Box{X1: s.X1, Y1: s.Y1, X2: s.X2, Y2: s.Y2}
}

// Contains reports whether s's bounding box strictly encloses o's.
func (s Sprite) Contains(o Sprite) bool {
	return s.X1 < o.X1 && s.Y1 < o.Y1 && s.X2 > o.X2 && s.Y2 > o.Y2
}

// MoveTo returns a copy of s whose bounding box, of unchanged size, is
// centred on c.
func (s Sprite) MoveTo(c utils.Point) Sprite {
	return s.Reshape(c, s.Width(), s.Height())
}

// Reshape returns a copy of s with a w x h bounding box centred on c. The
// pixel count is kept. Sizes below one pixel are raised to one.
func (s Sprite) Reshape(c utils.Point, w, h int) Sprite {
	w, h = max(w, 1), max(h, 1)
	s.X1 = int(math.Round(c.X - float64(w-1)/2))
	s.Y1 = int(math.Round(c.Y - float64(h-1)/2))
	s.X2 = s.X1 + w - 1
	s.Y2 = s.Y1 + h - 1
	return s
}

// LabelMap maps every pixel of the labeled image to its sprite label.
// Label 0 is background.
type LabelMap struct {
	minX, minY int
	width      int
	height     int
	labels     []int
}

// Width returns the number of columns.
func (m *LabelMap) Width() int { return m.width }

// Height returns the number of rows.
func (m *LabelMap) Height() int { return m.height }

// At returns the label at image coordinate (x, y), or 0 outside the map.
func (m *LabelMap) At(x, y int) int {
	x -= m.minX
	y -= m.minY
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0
	}
	return m.labels[y*m.width+x]
}

// Result is the outcome of one labeling pass.
type Result struct {
	Sprites map[int]Sprite
	Labels  *LabelMap
}

// Sorted returns the sprites ordered by label.
func (r *Result) Sorted() []Sprite {
	out := make([]Sprite, 0, len(r.Sprites))
	for _, s := range r.Sprites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
