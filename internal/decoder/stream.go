package decoder

import "strings"

// Stream is the ordered sequence of data and EC bits of a symbol.
type Stream struct {
	bits []uint8
}

// NewStream wraps a bit slice. Values other than 0 are treated as 1.
func NewStream(bits []uint8) Stream {
	s := Stream{bits: make([]uint8, len(bits))}
	for i, b := range bits {
		if b != 0 {
			s.bits[i] = 1
		}
	}
	return s
}

// Len returns the number of bits.
func (s Stream) Len() int { return len(s.bits) }

// Bits returns a copy of the bits.
func (s Stream) Bits() []uint8 {
	out := make([]uint8, len(s.bits))
	copy(out, s.bits)
	return out
}

// Codewords packs the stream into 8-bit codewords, most significant bit
// first. Trailing bits that do not fill a codeword are dropped.
func (s Stream) Codewords() []byte {
	out := make([]byte, len(s.bits)/8)
	for i := range out {
		var b byte
		for _, bit := range s.bits[i*8 : i*8+8] {
			b = b<<1 | bit
		}
		out[i] = b
	}
	return out
}

func (s Stream) String() string {
	var sb strings.Builder
	for _, b := range s.bits {
		sb.WriteByte('0' + b)
	}
	return sb.String()
}

// bitReader consumes a stream from the front.
type bitReader struct {
	bits []uint8
	pos  int
}

func (r *bitReader) remaining() int { return len(r.bits) - r.pos }

func (r *bitReader) read(n int) (int, bool) {
	if n > r.remaining() {
		return 0, false
	}
	v := 0
	for _, b := range r.bits[r.pos : r.pos+n] {
		v = v<<1 | int(b)
	}
	r.pos += n
	return v, true
}

func (r *bitReader) rest() []uint8 {
	out := make([]uint8, r.remaining())
	copy(out, r.bits[r.pos:])
	return out
}
