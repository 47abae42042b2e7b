package bpe

import (
	"sync"

	"github.com/pkg/errors"
)

// encoder applies the merge rules to individual pretokens. Encoded pretokens
// are memoized: natural language re-uses the same words constantly and the
// merge loop is the hot path.
type encoder struct {
	vocab *Vocabulary

	mu    sync.RWMutex
	cache map[string][]uint32
}

func newEncoder(vocab *Vocabulary) *encoder {
	return &encoder{
		vocab: vocab,
		cache: make(map[string][]uint32),
	}
}

// encodeWord turns one pretoken (raw bytes, not yet byte-level encoded) into
// token ids by running the BPE merge loop.
func (e *encoder) encodeWord(word string) ([]uint32, error) {
	e.mu.RLock()
	ids, ok := e.cache[word]
	e.mu.RUnlock()
	if ok {
		return ids, nil
	}

	encoded := encodeBytes(word)
	symbols := make([]string, 0, len(encoded))
	for _, r := range encoded {
		symbols = append(symbols, string(r))
	}

	for len(symbols) > 1 {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(symbols)-1; i++ {
			rank, ok := e.vocab.Rank(symbols[i], symbols[i+1])
			if !ok {
				continue
			}
			if bestRank < 0 || rank < bestRank {
				bestRank = rank
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break // no applicable merge left
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		symbols = append(symbols[:bestIdx], append([]string{merged}, symbols[bestIdx+2:]...)...)
	}

	ids = make([]uint32, 0, len(symbols))
	for _, sym := range symbols {
		id, ok := e.vocab.ID(sym)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownToken, "token %q", sym)
		}
		ids = append(ids, id)
	}

	e.mu.Lock()
	e.cache[word] = ids
	e.mu.Unlock()
	return ids, nil
}

// tokens maps ids back to their token strings. Only called on ids the
// encoder itself produced, so lookups cannot miss.
func (e *encoder) tokens(ids []uint32) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		token, _ := e.vocab.Token(id)
		out = append(out, token)
	}
	return out
}
