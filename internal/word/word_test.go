package word

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpackDoubleRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 300000, -300000, 1 << 30, -(1 << 30)}
	for _, v := range cases {
		hi, lo := UnpackDouble(v)
		require.Equal(t, v, PackDouble(hi, lo), "round trip for %d", v)
	}
}

func TestPackDoubleBigEndianWordOrder(t *testing.T) {
	// 300000 = 0x000493E0 -> hi word 0x0004, lo word 0x93e0
	hi, lo := UnpackDouble(300000)
	require.Equal(t, Word(0x0004), hi)
	require.Equal(t, uint16(0x93e0), uint16(lo))
}

func TestPackUnpackBytesRoundTrip(t *testing.T) {
	for hi := 0; hi < 256; hi += 17 {
		for lo := 0; lo < 256; lo += 13 {
			w := PackChars(byte(hi), byte(lo))
			gotHi, gotLo := UnpackBytes(w)
			require.Equal(t, Word(byte(hi)), gotHi)
			require.Equal(t, Word(byte(lo)), gotLo)
		}
	}
}

func TestResolveScale(t *testing.T) {
	require.Equal(t, 5, ResolveScale(5))
	require.Equal(t, DefaultScale, ResolveScale(-1))
	require.Equal(t, DefaultScale, ResolveScale(10))
	require.Equal(t, DefaultScale, ResolveScale(99))
}

func TestStringLenStopsAtZeroWord(t *testing.T) {
	mem := []Word{PackChars('H', 'i'), 0, PackChars('x', 'y')}
	require.Equal(t, 1, StringLen(mem, 0))
}

func TestStringLenIncludesHalfFilledTerminator(t *testing.T) {
	// low byte nonzero, high byte zero: ends after this one character,
	// but the word itself still counts toward the length.
	mem := []Word{PackChars('H', 'i'), Word('z'), Word(-1)}
	require.Equal(t, 2, StringLen(mem, 0))
}

func TestStringLenEmptyAtImmediateZero(t *testing.T) {
	mem := []Word{0, PackChars('a', 'b')}
	require.Equal(t, 0, StringLen(mem, 0))
}
