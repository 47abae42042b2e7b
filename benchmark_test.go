package bpe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func BenchmarkEncode(b *testing.B) {
	tok, err := FromFiles(testVocabPath, testMergesPath)
	require.NoError(b, err)
	defer func() { _ = tok.Close() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := tok.Encode("Hello, world!")
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeUncached(b *testing.B) {
	vocab, err := NewVocabulary(
		[]byte(`{"H": 0, "e": 1, "l": 2, "o": 3, "ll": 10, "ell": 11, "ello": 12}`),
		[]byte("l l\ne ll\nell o\n"),
	)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		enc := newEncoder(vocab)
		if _, err := enc.encodeWord("Hello"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	tok, err := FromFiles(testVocabPath, testMergesPath)
	require.NoError(b, err)
	defer func() { _ = tok.Close() }()

	ids := []uint32{0, 12, 7, 17, 8}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tok.Decode(ids); err != nil {
			b.Fatal(err)
		}
	}
}
