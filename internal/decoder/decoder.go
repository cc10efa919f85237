// Package decoder turns the unmasked module matrix of a QR symbol into its
// payload text.
package decoder

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

var (
	// ErrUnsupportedEncodingMode is returned for mode indicators other than
	// numeric, alphanumeric and byte.
	ErrUnsupportedEncodingMode = errors.New("unsupported encoding mode")
	// ErrMalformedBitstream is returned when the stream ends before the
	// declared data or holds values its mode cannot represent.
	ErrMalformedBitstream = errors.New("malformed bitstream")
)

// Mode is a segment mode indicator.
type Mode int

const (
	ModeNumeric      Mode = 0b0001
	ModeAlphanumeric Mode = 0b0010
	ModeByte         Mode = 0b0100
)

func (m Mode) String() string {
	switch m {
	case ModeNumeric:
		return "NUMERIC"
	case ModeAlphanumeric:
		return "ALPHANUMERIC"
	case ModeByte:
		return "BYTE"
	}
	return fmt.Sprintf("Mode(%04b)", int(m))
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// countBits returns the width of the character count field.
func countBits(m Mode, version int) int {
	idx := 0
	switch {
	case version >= 27:
		idx = 2
	case version >= 10:
		idx = 1
	}
	switch m {
	case ModeNumeric:
		return [3]int{10, 12, 14}[idx]
	case ModeAlphanumeric:
		return [3]int{9, 11, 13}[idx]
	default:
		return [3]int{8, 16, 16}[idx]
	}
}

const alphanumericTable = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

// Segment is the decoded first segment of a symbol.
type Segment struct {
	Mode   Mode   `json:"mode" yaml:"mode"`
	Length int    `json:"length" yaml:"length"`
	Text   string `json:"text" yaml:"text"`
	// Raw holds the payload bytes for byte mode and the ASCII text otherwise.
	Raw []byte `json:"-" yaml:"-"`
	// Remainder holds the bits after the segment: terminator, padding and
	// error correction codewords.
	Remainder []uint8 `json:"-" yaml:"-"`
}

// Decode reads the mode indicator, the character count and the data of the
// first segment in s.
func Decode(s Stream, info symbol.Info) (Segment, error) {
	r := &bitReader{bits: s.bits}
	v, ok := r.read(4)
	if !ok {
		return Segment{}, fmt.Errorf("%w: no mode indicator", ErrMalformedBitstream)
	}
	mode := Mode(v)
	switch mode {
	case ModeNumeric, ModeAlphanumeric, ModeByte:
	default:
		return Segment{}, fmt.Errorf("%w: %04b", ErrUnsupportedEncodingMode, v)
	}

	n := countBits(mode, info.Version)
	length, ok := r.read(n)
	if !ok {
		return Segment{}, fmt.Errorf("%w: truncated %d-bit length field", ErrMalformedBitstream, n)
	}

	var (
		raw []byte
		err error
	)
	switch mode {
	case ModeNumeric:
		raw, err = decodeNumeric(r, length)
	case ModeAlphanumeric:
		raw, err = decodeAlphanumeric(r, length)
	default:
		raw, err = decodeBytes(r, length)
	}
	if err != nil {
		return Segment{}, err
	}

	text := string(raw)
	if mode == ModeByte {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return Segment{}, fmt.Errorf("%w: %v", ErrMalformedBitstream, err)
		}
		text = string(decoded)
	}

	slog.Debug("Segment decoded", "mode", mode.String(), "length", length, "remainder_bits", r.remaining())
	return Segment{Mode: mode, Length: length, Text: text, Raw: raw, Remainder: r.rest()}, nil
}

// DecodeMatrix unmasks bits, extracts the data stream and decodes it.
func DecodeMatrix(bits symbol.Matrix, info symbol.Info) (Segment, error) {
	data, err := symbol.Unmask(bits, info)
	if err != nil {
		return Segment{}, err
	}
	s, err := Extract(data, info)
	if err != nil {
		return Segment{}, err
	}
	return Decode(s, info)
}

func decodeBytes(r *bitReader, length int) ([]byte, error) {
	if length*8 > r.remaining() {
		return nil, fmt.Errorf("%w: %d bytes declared, %d bits left", ErrMalformedBitstream, length, r.remaining())
	}
	out := make([]byte, length)
	for i := range out {
		v, _ := r.read(8)
		out[i] = byte(v)
	}
	return out, nil
}

func decodeNumeric(r *bitReader, length int) ([]byte, error) {
	var sb strings.Builder
	for left := length; left > 0; {
		digits, width := 3, 10
		switch left {
		case 2:
			digits, width = 2, 7
		case 1:
			digits, width = 1, 4
		}
		v, ok := r.read(width)
		if !ok {
			return nil, fmt.Errorf("%w: %d digits declared, stream ended", ErrMalformedBitstream, length)
		}
		limit := [4]int{0, 10, 100, 1000}[digits]
		if v >= limit {
			return nil, fmt.Errorf("%w: numeric group %d exceeds %d digits", ErrMalformedBitstream, v, digits)
		}
		fmt.Fprintf(&sb, "%0*d", digits, v)
		left -= digits
	}
	return []byte(sb.String()), nil
}

func decodeAlphanumeric(r *bitReader, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	for left := length; left > 0; {
		if left == 1 {
			v, ok := r.read(6)
			if !ok {
				return nil, fmt.Errorf("%w: %d characters declared, stream ended", ErrMalformedBitstream, length)
			}
			if v >= len(alphanumericTable) {
				return nil, fmt.Errorf("%w: alphanumeric value %d", ErrMalformedBitstream, v)
			}
			out = append(out, alphanumericTable[v])
			break
		}
		v, ok := r.read(11)
		if !ok {
			return nil, fmt.Errorf("%w: %d characters declared, stream ended", ErrMalformedBitstream, length)
		}
		a, b := v/45, v%45
		if a >= len(alphanumericTable) {
			return nil, fmt.Errorf("%w: alphanumeric value %d", ErrMalformedBitstream, v)
		}
		out = append(out, alphanumericTable[a], alphanumericTable[b])
		left -= 2
	}
	return out, nil
}
