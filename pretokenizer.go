package bpe

import (
	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// GPT2SplitPattern is the pretokenization regex used by GPT-2 and its
// descendants. It needs negative lookahead, which Go's RE2 engine does not
// support, hence regexp2.
const GPT2SplitPattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

type pretokenizer struct {
	re *regexp2.Regexp
}

func newPretokenizer(pattern string) (*pretokenizer, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile pretokenizer pattern: %s", pattern)
	}
	return &pretokenizer{re: re}, nil
}

// pretoken is a raw text fragment together with its byte offset in the
// original input.
type pretoken struct {
	text   string
	offset int
}

// split cuts the input into pretokens. An empty input yields no pretokens.
func (p *pretokenizer) split(text string) ([]pretoken, error) {
	if text == "" {
		return nil, nil
	}
	var out []pretoken
	m, err := p.re.FindStringMatch(text)
	if err != nil {
		return nil, errors.Wrap(err, "pretokenizer match failed")
	}
	// regexp2 reports rune indices; track the byte offset alongside.
	runeToByteOff := make([]int, 0, len(text)+1)
	for i := range text {
		runeToByteOff = append(runeToByteOff, i)
	}
	runeToByteOff = append(runeToByteOff, len(text))
	for m != nil {
		out = append(out, pretoken{
			text:   m.String(),
			offset: runeToByteOff[m.Index],
		})
		m, err = p.re.FindNextMatch(m)
		if err != nil {
			return nil, errors.Wrap(err, "pretokenizer match failed")
		}
	}
	return out, nil
}
