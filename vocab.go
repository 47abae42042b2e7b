package bpe

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Vocabulary holds the token tables and merge ranks loaded from a
// vocab.json + merges.txt pair (the GPT-2 on-disk format).
type Vocabulary struct {
	// Values maps id -> token string. Ids may be sparse; absent slots hold "".
	Values []string
	// Reverse maps token string -> id.
	Reverse map[string]uint32
	// Merges maps "left right" -> rank. Lower rank merges first.
	Merges map[string]int
}

type mergePair struct {
	left, right string
}

// parseVocab parses a vocab.json payload: a JSON object mapping token
// strings to integer ids.
func parseVocab(data []byte) (map[string]uint32, error) {
	vocab := make(map[string]uint32)
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, errors.Wrap(err, "invalid vocab.json format")
	}
	if len(vocab) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	return vocab, nil
}

// parseMerges parses a merges.txt payload: one "left right" pair per line,
// in priority order. A leading "#version" header and "#" comment lines are
// skipped, matching what GPT-2 style exports contain.
func parseMerges(data []byte) ([]mergePair, error) {
	lines := strings.Split(string(data), "\n")
	pairs := make([]mergePair, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, " ")
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			return nil, errors.Errorf("malformed merge rule at line %d: %q", i+1, line)
		}
		pairs = append(pairs, mergePair{left: fields[0], right: fields[1]})
	}
	return pairs, nil
}

// NewVocabulary builds the lookup tables from raw vocab.json and merges.txt
// contents. Merge rules referring to tokens absent from the vocabulary are
// kept: they can still fire as intermediate merges even when the combined
// token only appears via a later rule.
func NewVocabulary(vocabData, mergesData []byte) (*Vocabulary, error) {
	reverse, err := parseVocab(vocabData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse vocabulary")
	}
	pairs, err := parseMerges(mergesData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse merges")
	}

	maxID := uint32(0)
	for _, id := range reverse {
		if id > maxID {
			maxID = id
		}
	}
	values := make([]string, maxID+1)
	for token, id := range reverse {
		values[id] = token
	}

	merges := make(map[string]int, len(pairs))
	for rank, p := range pairs {
		key := p.left + " " + p.right
		if _, seen := merges[key]; seen {
			continue // first occurrence wins
		}
		merges[key] = rank
	}

	return &Vocabulary{
		Values:  values,
		Reverse: reverse,
		Merges:  merges,
	}, nil
}

// Size returns the number of entries in the vocabulary.
func (v *Vocabulary) Size() uint32 {
	return uint32(len(v.Reverse))
}

// Token returns the token string for an id.
func (v *Vocabulary) Token(id uint32) (string, bool) {
	if int(id) >= len(v.Values) {
		return "", false
	}
	token := v.Values[id]
	if token == "" {
		return "", false
	}
	return token, true
}

// ID returns the id for a token string.
func (v *Vocabulary) ID(token string) (uint32, bool) {
	id, ok := v.Reverse[token]
	return id, ok
}

// Rank returns the merge priority for a symbol pair, or false when the pair
// is not a known merge.
func (v *Vocabulary) Rank(left, right string) (int, bool) {
	rank, ok := v.Merges[left+" "+right]
	return rank, ok
}
