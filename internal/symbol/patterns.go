package symbol

import "fmt"

// alignmentPositions lists the alignment pattern centre coordinates per
// version. Index 0 is unused and version 1 has none.
var alignmentPositions = [MaxVersion + 1][]int{
	{}, {},
	{6, 18},
	{6, 22},
	{6, 26},
	{6, 30},
	{6, 34},
	{6, 22, 38},
	{6, 24, 42},
	{6, 26, 46},
	{6, 28, 50},
	{6, 30, 54},
	{6, 32, 58},
	{6, 34, 62},
	{6, 26, 46, 66},
	{6, 26, 48, 70},
	{6, 26, 50, 74},
	{6, 30, 54, 78},
	{6, 30, 56, 82},
	{6, 30, 58, 86},
	{6, 34, 62, 90},
	{6, 28, 50, 72, 94},
	{6, 26, 50, 74, 98},
	{6, 30, 54, 78, 102},
	{6, 28, 54, 80, 106},
	{6, 32, 58, 84, 110},
	{6, 30, 58, 86, 114},
	{6, 34, 62, 90, 118},
	{6, 26, 50, 74, 98, 122},
	{6, 30, 54, 78, 102, 126},
	{6, 26, 52, 78, 104, 130},
	{6, 30, 56, 82, 108, 134},
	{6, 34, 60, 86, 112, 138},
	{6, 30, 58, 86, 114, 142},
	{6, 34, 62, 90, 118, 146},
	{6, 30, 54, 78, 102, 126, 150},
	{6, 24, 50, 76, 102, 128, 154},
	{6, 28, 54, 80, 106, 132, 158},
	{6, 32, 58, 84, 110, 136, 162},
	{6, 26, 54, 82, 110, 138, 166},
	{6, 30, 58, 86, 114, 142, 170},
}

// AlignmentPositions returns the alignment centre coordinates for version.
func AlignmentPositions(version int) []int {
	if version < MinVersion || version > MaxVersion {
		return nil
	}
	return alignmentPositions[version]
}

// CoordSet is a set of module coordinates within a square symbol.
type CoordSet struct {
	width int
	bits  []bool
	n     int
}

// NewCoordSet returns an empty set for a symbol of the given width.
func NewCoordSet(width int) *CoordSet {
	return &CoordSet{width: width, bits: make([]bool, width*width)}
}

// Add inserts row, col. Out of range coordinates are ignored.
func (s *CoordSet) Add(row, col int) {
	if row < 0 || col < 0 || row >= s.width || col >= s.width {
		return
	}
	i := row*s.width + col
	if !s.bits[i] {
		s.bits[i] = true
		s.n++
	}
}

// AddRect inserts every coordinate of the inclusive rectangle.
func (s *CoordSet) AddRect(r1, c1, r2, c2 int) {
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			s.Add(r, c)
		}
	}
}

// Contains reports whether row, col is in the set.
func (s *CoordSet) Contains(row, col int) bool {
	if row < 0 || col < 0 || row >= s.width || col >= s.width {
		return false
	}
	return s.bits[row*s.width+col]
}

// Len returns the number of coordinates in the set.
func (s *CoordSet) Len() int { return s.n }

// Width returns the symbol width the set was built for.
func (s *CoordSet) Width() int { return s.width }

// FunctionPatterns returns the coordinates reserved for non-data modules:
// the finder, separator and format zones at three corners, the timing row
// and column, the alignment patterns, and from version 7 the two version
// information blocks.
func FunctionPatterns(version int) (*CoordSet, error) {
	g, err := NewGeometry(version)
	if err != nil {
		return nil, err
	}
	w := g.Width
	set := NewCoordSet(w)

	finders := NewCoordSet(w)
	finders.AddRect(0, 0, 8, 8)
	finders.AddRect(0, w-8, 8, w-1)
	finders.AddRect(w-8, 0, w-1, 8)
	set.AddRect(0, 0, 8, 8)
	set.AddRect(0, w-8, 8, w-1)
	set.AddRect(w-8, 0, w-1, 8)

	set.AddRect(6, 0, 6, w-1)
	set.AddRect(0, 6, w-1, 6)

	positions := alignmentPositions[version]
	for _, r := range positions {
		for _, c := range positions {
			if overlaps(finders, r-2, c-2, r+2, c+2) {
				continue
			}
			set.AddRect(r-2, c-2, r+2, c+2)
		}
	}

	if version >= 7 {
		set.AddRect(0, w-11, 5, w-9)
		set.AddRect(w-11, 0, w-9, 5)
	}
	return set, nil
}

func overlaps(s *CoordSet, r1, c1, r2, c2 int) bool {
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			if s.Contains(r, c) {
				return true
			}
		}
	}
	return false
}

// DataCapacity returns the number of data and EC modules of version.
func DataCapacity(version int) (int, error) {
	fp, err := FunctionPatterns(version)
	if err != nil {
		return 0, fmt.Errorf("data capacity: %w", err)
	}
	w := fp.Width()
	return w*w - fp.Len(), nil
}
