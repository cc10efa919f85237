package symbol

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Coord addresses one module by row and column.
type Coord struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// Matrix is a square grid of 0/1 module values where 1 means dark.
type Matrix struct {
	width int
	cells []uint8
}

// NewMatrix returns an all-light matrix.
func NewMatrix(width int) Matrix {
	return Matrix{width: width, cells: make([]uint8, width*width)}
}

// Width returns the number of modules per side.
func (m Matrix) Width() int { return m.width }

// At returns the value at row, col. Out of range reads are light.
func (m Matrix) At(row, col int) uint8 {
	if row < 0 || col < 0 || row >= m.width || col >= m.width {
		return 0
	}
	return m.cells[row*m.width+col]
}

// Set stores v (0 or 1) at row, col.
func (m Matrix) Set(row, col int, v uint8) {
	if row < 0 || col < 0 || row >= m.width || col >= m.width {
		return
	}
	m.cells[row*m.width+col] = v & 1
}

// Clone returns an independent copy.
func (m Matrix) Clone() Matrix {
	c := NewMatrix(m.width)
	copy(c.cells, m.cells)
	return c
}

// Xor combines two matrices cell by cell as |a-b|.
func (m Matrix) Xor(o Matrix) (Matrix, error) {
	if m.width != o.width {
		return Matrix{}, fmt.Errorf("matrix width mismatch: %d vs %d", m.width, o.width)
	}
	out := NewMatrix(m.width)
	for i, a := range m.cells {
		b := o.cells[i]
		if a > b {
			out.cells[i] = a - b
		} else {
			out.cells[i] = b - a
		}
	}
	return out, nil
}

// Equal reports whether both matrices hold the same cells.
func (m Matrix) Equal(o Matrix) bool {
	if m.width != o.width {
		return false
	}
	for i := range m.cells {
		if m.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// String renders dark modules as '#' and light modules as '.'.
func (m Matrix) String() string {
	var sb strings.Builder
	for r := range m.width {
		for c := range m.width {
			if m.At(r, c) == 1 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Sample resizes a rectified symbol to width x width pixels with nearest
// neighbour sampling and classifies each pixel as a module.
func Sample(img image.Image, width int) (Matrix, error) {
	if img == nil {
		return Matrix{}, fmt.Errorf("sample grid: nil image")
	}
	if width <= 0 {
		return Matrix{}, fmt.Errorf("sample grid: invalid width %d", width)
	}
	small := imaging.Resize(img, width, width, imaging.NearestNeighbor)
	m := NewMatrix(width)
	for r := range width {
		for c := range width {
			if utils.IsDark(small.NRGBAAt(c, r)) {
				m.Set(r, c, 1)
			}
		}
	}
	return m, nil
}
