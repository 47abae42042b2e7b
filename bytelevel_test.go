package bpe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteTableBijection(t *testing.T) {
	seen := make(map[rune]bool, 256)
	for b := 0; b < 256; b++ {
		r := byteToRune[b]
		assert.False(t, seen[r], "rune %U mapped twice", r)
		seen[r] = true

		back, ok := runeToByte[r]
		require.True(t, ok)
		assert.Equal(t, byte(b), back)
	}
}

func TestByteTableKnownMappings(t *testing.T) {
	assert.Equal(t, 'Ġ', byteToRune[' '])
	assert.Equal(t, 'Ċ', byteToRune['\n'])
	// Printable ASCII maps to itself.
	assert.Equal(t, 'a', byteToRune['a'])
	assert.Equal(t, 'Z', byteToRune['Z'])
	assert.Equal(t, '!', byteToRune['!'])
}

func TestEncodeDecodeBytesRoundtrip(t *testing.T) {
	inputs := []string{
		"Hello, world!",
		" leading and trailing ",
		"tabs\tand\nnewlines",
		"déjà vu",
		string([]byte{0x00, 0x7f, 0xff}),
	}
	for _, in := range inputs {
		assert.Equal(t, in, decodeBytes(encodeBytes(in)))
	}
}

func TestEncodeBytesSpace(t *testing.T) {
	assert.Equal(t, "Ġworld", encodeBytes(" world"))
	assert.Equal(t, " world", decodeBytes("Ġworld"))
}
