package symbol

import "fmt"

// maskPredicates are the eight data mask conditions over row i and column j.
var maskPredicates = [8]func(i, j int) bool{
	func(i, j int) bool { return (i+j)%2 == 0 },
	func(i, j int) bool { return i%2 == 0 },
	func(i, j int) bool { return j%3 == 0 },
	func(i, j int) bool { return (i+j)%3 == 0 },
	func(i, j int) bool { return (i/2+j/3)%2 == 0 },
	func(i, j int) bool { return (i*j)%2+(i*j)%3 == 0 },
	func(i, j int) bool { return ((i*j)%2+(i*j)%3)%2 == 0 },
	func(i, j int) bool { return ((i+j)%2+(i*j)%3)%2 == 0 },
}

// MaskMatrix returns the width x width matrix of mask id, with 1 where the
// module is inverted.
func MaskMatrix(id, width int) (Matrix, error) {
	if id < 0 || id >= len(maskPredicates) {
		return Matrix{}, fmt.Errorf("%w: mask %d out of range", ErrNoMaskID, id)
	}
	pred := maskPredicates[id]
	m := NewMatrix(width)
	for i := range width {
		for j := range width {
			if pred(i, j) {
				m.Set(i, j, 1)
			}
		}
	}
	return m, nil
}

// Unmask removes the data mask of info from the sampled bits.
func Unmask(bits Matrix, info Info) (Matrix, error) {
	mask, err := MaskMatrix(info.MaskID, bits.Width())
	if err != nil {
		return Matrix{}, err
	}
	return bits.Xor(mask)
}
