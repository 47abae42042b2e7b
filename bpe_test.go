package bpe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncoder(t *testing.T) *encoder {
	t.Helper()
	vocab, err := NewVocabulary(
		[]byte(`{"H": 0, "e": 1, "l": 2, "o": 3, "ll": 10, "ell": 11, "ello": 12}`),
		[]byte("l l\ne ll\nell o\n"),
	)
	require.NoError(t, err)
	return newEncoder(vocab)
}

func TestEncodeWordMergeOrder(t *testing.T) {
	enc := newTestEncoder(t)

	// H e l l o -> H e ll o -> H ell o -> H ello
	ids, err := enc.encodeWord("Hello")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 12}, ids)
	assert.Equal(t, []string{"H", "ello"}, enc.tokens(ids))
}

func TestEncodeWordNoMerges(t *testing.T) {
	enc := newTestEncoder(t)

	ids, err := enc.encodeWord("ole")
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 2, 1}, ids)
}

func TestEncodeWordUnknownSymbol(t *testing.T) {
	enc := newTestEncoder(t)

	_, err := enc.encodeWord("Hx")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestEncodeWordCached(t *testing.T) {
	enc := newTestEncoder(t)

	first, err := enc.encodeWord("Hello")
	require.NoError(t, err)
	second, err := enc.encodeWord("Hello")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	enc.mu.RLock()
	_, cached := enc.cache["Hello"]
	enc.mu.RUnlock()
	assert.True(t, cached)
}

func TestEncodeWordConcurrent(t *testing.T) {
	enc := newTestEncoder(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ids, err := enc.encodeWord("Hello")
				assert.NoError(t, err)
				assert.Equal(t, []uint32{0, 12}, ids)
			}
		}()
	}
	wg.Wait()
}
