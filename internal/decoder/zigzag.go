package decoder

import (
	"fmt"

	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// timingColumn is the vertical timing pattern the traversal jumps over.
const timingColumn = 6

// Zigzag returns the module placement order of a width x width symbol. The
// walk starts at the lower right corner and moves through two-column strips,
// upward then downward in turn, reading the right column of each row before
// the left one. Column 6 is never visited.
func Zigzag(width int) []symbol.Coord {
	if width < 2 {
		return nil
	}
	out := make([]symbol.Coord, 0, width*(width-1))
	up := true
	for right := width - 1; right > 0; right -= 2 {
		if right == timingColumn {
			right--
		}
		for k := range width {
			row := k
			if up {
				row = width - 1 - k
			}
			out = append(out,
				symbol.Coord{Row: row, Col: right},
				symbol.Coord{Row: row, Col: right - 1})
		}
		up = !up
	}
	return out
}

// Extract reads the data modules of an unmasked matrix in zigzag order,
// skipping the function patterns of info's version.
func Extract(data symbol.Matrix, info symbol.Info) (Stream, error) {
	if data.Width() != info.Width {
		return Stream{}, fmt.Errorf("extract: matrix width %d does not match symbol width %d", data.Width(), info.Width)
	}
	reserved, err := symbol.FunctionPatterns(info.Version)
	if err != nil {
		return Stream{}, fmt.Errorf("extract: %w", err)
	}
	order := Zigzag(info.Width)
	bits := make([]uint8, 0, len(order)-reserved.Len())
	for _, c := range order {
		if reserved.Contains(c.Row, c.Col) {
			continue
		}
		bits = append(bits, data.At(c.Row, c.Col))
	}
	return Stream{bits: bits}, nil
}
