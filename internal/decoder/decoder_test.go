package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// bitBuilder accumulates big-endian bit fields.
type bitBuilder []uint8

func (b *bitBuilder) add(v, n int) {
	for i := n - 1; i >= 0; i-- {
		*b = append(*b, uint8(v>>uint(i))&1)
	}
}

func (b *bitBuilder) addBytes(s string) {
	for i := 0; i < len(s); i++ {
		b.add(int(s[i]), 8)
	}
}

// placeBits lays bits out along the zigzag path of version, skipping
// function patterns, and returns the resulting unmasked matrix.
func placeBits(t *testing.T, version int, bits []uint8) symbol.Matrix {
	t.Helper()
	g, err := symbol.NewGeometry(version)
	require.NoError(t, err)
	fp, err := symbol.FunctionPatterns(version)
	require.NoError(t, err)

	m := symbol.NewMatrix(g.Width)
	i := 0
	for _, c := range Zigzag(g.Width) {
		if fp.Contains(c.Row, c.Col) {
			continue
		}
		if i < len(bits) {
			m.Set(c.Row, c.Col, bits[i])
		}
		i++
	}
	require.LessOrEqual(t, len(bits), i, "payload does not fit")
	return m
}

func info(version int) symbol.Info {
	g, _ := symbol.NewGeometry(version)
	return g.WithFormat(symbol.Format{ECLevel: symbol.ECLevelL})
}

func TestZigzagCoversEveryModuleOnce(t *testing.T) {
	for version := symbol.MinVersion; version <= symbol.MaxVersion; version++ {
		w := symbol.WidthForVersion(version)
		order := Zigzag(w)
		require.Len(t, order, w*(w-1), "version %d", version)

		// The skipped column carries no data modules.
		fp, err := symbol.FunctionPatterns(version)
		require.NoError(t, err)
		for r := range w {
			require.True(t, fp.Contains(r, timingColumn), "version %d row %d", version, r)
		}

		seen := make(map[symbol.Coord]bool, len(order))
		for _, c := range order {
			require.NotEqual(t, timingColumn, c.Col)
			require.False(t, seen[c], "version %d revisits %v", version, c)
			require.True(t, c.Row >= 0 && c.Row < w && c.Col >= 0 && c.Col < w)
			seen[c] = true
		}
	}
}

func TestZigzagOrder(t *testing.T) {
	order := Zigzag(21)
	assert.Equal(t, symbol.Coord{Row: 20, Col: 20}, order[0])
	assert.Equal(t, symbol.Coord{Row: 20, Col: 19}, order[1])
	assert.Equal(t, symbol.Coord{Row: 19, Col: 20}, order[2])
	// The second strip runs downward.
	assert.Equal(t, symbol.Coord{Row: 0, Col: 18}, order[42])
	// The strip after columns 8 and 7 jumps over the timing column.
	assert.Equal(t, symbol.Coord{Row: 0, Col: 5}, order[7*42])
	assert.Equal(t, symbol.Coord{Row: 0, Col: 4}, order[7*42+1])
	assert.Nil(t, Zigzag(1))
}

func TestExtractLength(t *testing.T) {
	for _, version := range []int{1, 2, 7, 14, 40} {
		inf := info(version)
		s, err := Extract(symbol.NewMatrix(inf.Width), inf)
		require.NoError(t, err)
		want, err := symbol.DataCapacity(version)
		require.NoError(t, err)
		assert.Equal(t, want, s.Len(), "version %d", version)
	}

	_, err := Extract(symbol.NewMatrix(25), info(1))
	assert.Error(t, err)
}

func TestDecodeSyntheticHello(t *testing.T) {
	var b bitBuilder
	b.add(int(ModeByte), 4)
	b.add(5, 8)
	b.addBytes("Hello")
	b.add(0, 4)
	for i := 0; len(b) < 152; i++ {
		b.add([2]int{0xEC, 0x11}[i%2], 8)
	}

	data := placeBits(t, 1, b)
	mask, err := symbol.MaskMatrix(0, 21)
	require.NoError(t, err)
	masked, err := data.Xor(mask)
	require.NoError(t, err)
	require.NoError(t, symbol.WriteFormat(masked, symbol.Format{ECLevel: symbol.ECLevelL, MaskID: 0}))

	f, err := symbol.ReadFormat(masked)
	require.NoError(t, err)
	assert.Equal(t, 0, f.MaskID)
	assert.Equal(t, symbol.ECLevelL, f.ECLevel)

	g, err := symbol.NewGeometry(1)
	require.NoError(t, err)
	seg, err := DecodeMatrix(masked, g.WithFormat(f))
	require.NoError(t, err)
	assert.Equal(t, "Hello", seg.Text)
	assert.Equal(t, ModeByte, seg.Mode)
	assert.Equal(t, 5, seg.Length)
	assert.Equal(t, []byte("Hello"), seg.Raw)
	assert.Len(t, seg.Remainder, 208-4-8-40)
}

func TestDecodeNumeric(t *testing.T) {
	var b bitBuilder
	b.add(int(ModeNumeric), 4)
	b.add(8, 10)
	b.add(12, 10)
	b.add(345, 10)
	b.add(67, 7)

	seg, err := Decode(NewStream(b), info(1))
	require.NoError(t, err)
	assert.Equal(t, "01234567", seg.Text)
	assert.Equal(t, ModeNumeric, seg.Mode)
	assert.Empty(t, seg.Remainder)
}

func TestDecodeNumeric_SingleDigitAndOverflow(t *testing.T) {
	var b bitBuilder
	b.add(int(ModeNumeric), 4)
	b.add(1, 10)
	b.add(7, 4)
	seg, err := Decode(NewStream(b), info(1))
	require.NoError(t, err)
	assert.Equal(t, "7", seg.Text)

	b = nil
	b.add(int(ModeNumeric), 4)
	b.add(3, 10)
	b.add(1023, 10)
	_, err = Decode(NewStream(b), info(1))
	assert.ErrorIs(t, err, ErrMalformedBitstream)
}

func TestDecodeAlphanumeric(t *testing.T) {
	var b bitBuilder
	b.add(int(ModeAlphanumeric), 4)
	b.add(5, 9)
	b.add(10*45+12, 11) // AC
	b.add(41*45+4, 11)  // -4
	b.add(2, 6)         // 2

	seg, err := Decode(NewStream(b), info(1))
	require.NoError(t, err)
	assert.Equal(t, "AC-42", seg.Text)
	assert.Equal(t, "ALPHANUMERIC", seg.Mode.String())
}

func TestDecodeByte_Latin1(t *testing.T) {
	var b bitBuilder
	b.add(int(ModeByte), 4)
	b.add(4, 8)
	b.add('c', 8)
	b.add('a', 8)
	b.add('f', 8)
	b.add(0xE9, 8)

	seg, err := Decode(NewStream(b), info(1))
	require.NoError(t, err)
	assert.Equal(t, "café", seg.Text)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, seg.Raw)
}

func TestDecodeByte_LongCountFromVersion10(t *testing.T) {
	var b bitBuilder
	b.add(int(ModeByte), 4)
	b.add(2, 16)
	b.addBytes("ok")

	seg, err := Decode(NewStream(b), info(10))
	require.NoError(t, err)
	assert.Equal(t, "ok", seg.Text)

	// The same stream read as version 9 takes an 8-bit count of zero.
	seg, err = Decode(NewStream(b), info(9))
	require.NoError(t, err)
	assert.Equal(t, 0, seg.Length)

	// An 8-bit count is not accepted from version 10 on: its first 16 bits
	// are read as the count.
	var short bitBuilder
	short.add(int(ModeByte), 4)
	short.add(2, 8)
	short.addBytes("Hi")
	for range 7 {
		short.add(0xEC, 8)
	}
	_, err = Decode(NewStream(short), info(10))
	assert.ErrorIs(t, err, ErrMalformedBitstream)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *bitBuilder)
		want  error
	}{
		{"empty", func(b *bitBuilder) {}, ErrMalformedBitstream},
		{"kanji", func(b *bitBuilder) { b.add(0b1000, 4); b.add(1, 8) }, ErrUnsupportedEncodingMode},
		{"eci", func(b *bitBuilder) { b.add(0b0111, 4) }, ErrUnsupportedEncodingMode},
		{"terminator", func(b *bitBuilder) { b.add(0, 4) }, ErrUnsupportedEncodingMode},
		{"truncated count", func(b *bitBuilder) { b.add(int(ModeByte), 4); b.add(1, 3) }, ErrMalformedBitstream},
		{"truncated data", func(b *bitBuilder) {
			b.add(int(ModeByte), 4)
			b.add(3, 8)
			b.addBytes("ab")
		}, ErrMalformedBitstream},
		{"truncated alphanumeric", func(b *bitBuilder) {
			b.add(int(ModeAlphanumeric), 4)
			b.add(3, 9)
			b.add(0, 11)
		}, ErrMalformedBitstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b bitBuilder
			tt.build(&b)
			_, err := Decode(NewStream(b), info(1))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStreamCodewords(t *testing.T) {
	var b bitBuilder
	b.add(0x41, 8)
	b.add(0xFF, 8)
	b.add(1, 3)
	s := NewStream(b)
	assert.Equal(t, []byte{0x41, 0xFF}, s.Codewords())
	assert.Equal(t, 19, s.Len())
	assert.Equal(t, "0100000111111111001", s.String())
	assert.Equal(t, []uint8(b), s.Bits())
}
