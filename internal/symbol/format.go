package symbol

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrNoMaskID is returned when the format information cannot be read.
var ErrNoMaskID = errors.New("no mask id")

// ECLevel is the error correction level of a symbol.
type ECLevel int

const (
	ECLevelL ECLevel = iota
	ECLevelM
	ECLevelQ
	ECLevelH
)

func (l ECLevel) String() string {
	switch l {
	case ECLevelL:
		return "L"
	case ECLevelM:
		return "M"
	case ECLevelQ:
		return "Q"
	case ECLevelH:
		return "H"
	}
	return fmt.Sprintf("ECLevel(%d)", int(l))
}

// MarshalText encodes the level as its letter.
func (l ECLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// ecByBits maps the two format EC bits, as they appear in the symbol, to a level.
var ecByBits = [4]ECLevel{
	0b00: ECLevelH,
	0b01: ECLevelQ,
	0b10: ECLevelM,
	0b11: ECLevelL,
}

const (
	formatGenerator = 0x537
	formatXORMask   = 0x5412
	maskXOR         = 0b101
	maxFormatErrors = 3
)

// Format is the decoded format information.
type Format struct {
	ECLevel ECLevel `json:"ec_level" yaml:"ec_level"`
	MaskID  int     `json:"mask_id" yaml:"mask_id"`
	Raw     uint16  `json:"raw" yaml:"raw"`
}

// FormatFromFields builds a Format from the two EC bits and a mask id.
func FormatFromFields(ecBits, maskID int) (Format, error) {
	if maskID < 0 || maskID > 7 {
		return Format{}, fmt.Errorf("%w: mask %d out of range", ErrNoMaskID, maskID)
	}
	if ecBits < 0 || ecBits > 3 {
		return Format{}, fmt.Errorf("%w: EC bits %b out of range", ErrNoMaskID, ecBits)
	}
	// ecBits and the mask field are stored masked; undo that to get the
	// five data bits the codeword is computed over.
	data := uint16(ecBits<<3|(maskID^maskXOR)) ^ (formatXORMask >> 10)
	return Format{ECLevel: ecByBits[ecBits], MaskID: maskID, Raw: formatCodeword(data)}, nil
}

// formatCodeword returns the masked BCH(15,5) codeword for five unmasked
// data bits.
func formatCodeword(data uint16) uint16 {
	v := uint32(data) << 10
	rem := v
	for i := 14; i >= 10; i-- {
		if rem&(1<<uint(i)) != 0 {
			rem ^= formatGenerator << uint(i-10)
		}
	}
	return uint16(v|rem) ^ formatXORMask
}

var formatCodewords = func() [32]uint16 {
	var cw [32]uint16
	for d := range cw {
		cw[d] = formatCodeword(uint16(d))
	}
	return cw
}()

// correctFormat returns the valid codeword closest to raw.
func correctFormat(raw uint16) (uint16, bool) {
	best, bestDist := uint16(0), 16
	for _, cw := range formatCodewords {
		if d := bits.OnesCount16(raw ^ cw); d < bestDist {
			best, bestDist = cw, d
		}
	}
	return best, bestDist <= maxFormatErrors
}

// formatPositions lists the second copy of the format bits, most significant
// first: column 8 upward beside the lower left finder, then row 8 rightward
// below the upper right finder.
func formatPositions(width int) [15]Coord {
	var pos [15]Coord
	for i := range 7 {
		pos[i] = Coord{Row: width - 1 - i, Col: 8}
	}
	for i := range 8 {
		pos[7+i] = Coord{Row: 8, Col: width - 8 + i}
	}
	return pos
}

// ReadFormat reads and corrects the 15 format bits of m.
func ReadFormat(m Matrix) (Format, error) {
	if m.Width() < WidthForVersion(MinVersion) {
		return Format{}, fmt.Errorf("%w: matrix too small (%d)", ErrNoMaskID, m.Width())
	}
	var raw uint16
	for _, p := range formatPositions(m.Width()) {
		raw = raw<<1 | uint16(m.At(p.Row, p.Col))
	}
	cw, ok := correctFormat(raw)
	if !ok {
		return Format{}, fmt.Errorf("%w: format bits %015b", ErrNoMaskID, raw)
	}
	ecBits := int(cw>>13) & 0b11
	maskID := (int(cw>>10) & 0b111) ^ maskXOR
	f, err := FormatFromFields(ecBits, maskID)
	if err != nil {
		return Format{}, err
	}
	f.Raw = raw
	return f, nil
}

// WriteFormat places the format codeword for f into m at the positions
// ReadFormat reads from.
func WriteFormat(m Matrix, f Format) error {
	ecBits := -1
	for b, lv := range ecByBits {
		if lv == f.ECLevel {
			ecBits = b
		}
	}
	full, err := FormatFromFields(ecBits, f.MaskID)
	if err != nil {
		return err
	}
	for i, p := range formatPositions(m.Width()) {
		m.Set(p.Row, p.Col, uint8(full.Raw>>(14-uint(i)))&1)
	}
	return nil
}
