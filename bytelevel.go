package bpe

// Byte-level encoding per GPT-2: every input byte maps to a printable rune so
// that merge rules and vocabulary entries never have to deal with raw control
// bytes or partial UTF-8 sequences. Printable bytes map to themselves; the
// rest are shifted into the U+0100 range (space becomes Ġ, U+0120).
var byteToRune [256]rune

// runeToByte is the inverse table, used when decoding ids back to text.
var runeToByte map[rune]byte

func init() {
	for b := 0; b < 256; b++ {
		r := rune(b)
		switch {
		case r == 0x00ad:
			r = 0x0143
		case r <= 0x0020:
			r = r + 0x0100
		case r >= 0x007f && r <= 0x00a0:
			r = r + 0x00a2
		}
		byteToRune[b] = r
	}
	runeToByte = make(map[rune]byte, 256)
	for b, r := range byteToRune {
		runeToByte[r] = byte(b)
	}
}

// encodeBytes maps raw bytes to their byte-level rune representation.
func encodeBytes(s string) string {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, byteToRune[s[i]])
	}
	return string(out)
}

// decodeBytes maps a byte-level token string back to raw bytes. Runes outside
// the encoding table are passed through untouched so a vocabulary containing
// plain multi-byte tokens still decodes.
func decodeBytes(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, []byte(string(r))...)
	}
	return string(out)
}
