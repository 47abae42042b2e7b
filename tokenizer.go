package bpe

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DefaultVocabFile and DefaultMergesFile are the conventional file names of
// the GPT-2 tokenizer export format.
const (
	DefaultVocabFile  = "vocab.json"
	DefaultMergesFile = "merges.txt"
)

var (
	// ErrUnknownToken is returned when a fully merged symbol has no id in
	// the vocabulary.
	ErrUnknownToken = errors.New("token not present in vocabulary")
	// ErrInvalidID is returned by Decode for ids outside the vocabulary.
	ErrInvalidID = errors.New("id not present in vocabulary")
	// ErrClosed is returned for operations on a closed tokenizer.
	ErrClosed = errors.New("tokenizer is closed")
)

// EncodeOptions control which attributes Encode materializes.
type EncodeOptions struct {
	ReturnTokens  bool
	ReturnOffsets bool
}

// EncodeResult is the outcome of encoding one message. IDs is always set;
// Tokens and Offsets are populated per the encode options. Offsets holds
// flattened (start, end) byte ranges into the original input.
type EncodeResult struct {
	IDs     []uint32
	Tokens  []string
	Offsets []uint32
}

type EncodeOption func(eo *EncodeOptions) error

func WithReturnTokens() EncodeOption {
	return func(eo *EncodeOptions) error {
		eo.ReturnTokens = true
		return nil
	}
}

func WithReturnOffsets() EncodeOption {
	return func(eo *EncodeOptions) error {
		eo.ReturnOffsets = true
		return nil
	}
}

func WithReturnAllAttributes() EncodeOption {
	return func(eo *EncodeOptions) error {
		eo.ReturnTokens = true
		eo.ReturnOffsets = true
		return nil
	}
}

type TokenizerOption func(t *Tokenizer) error

// WithSplitPattern overrides the pretokenization regex. The default is the
// GPT-2 pattern; models shipping a different pretokenizer can pass theirs.
func WithSplitPattern(pattern string) TokenizerOption {
	return func(t *Tokenizer) error {
		if pattern == "" {
			return errors.New("split pattern cannot be empty")
		}
		t.splitPattern = pattern
		return nil
	}
}

// Tokenizer is a byte-level BPE tokenizer built from a vocab.json and a
// merges.txt file. It is safe for concurrent use.
type Tokenizer struct {
	vocab        *Vocabulary
	pretok       *pretokenizer
	enc          *encoder
	splitPattern string
	closed       bool

	defaultEncodingOpts EncodeOptions
	hfConfig            *HFConfig
}

// FromFiles constructs a tokenizer from a vocabulary file and a merges file.
func FromFiles(vocabPath, mergesPath string, opts ...TokenizerOption) (*Tokenizer, error) {
	vocabData, err := readTokenizerFile(vocabPath, "vocabulary")
	if err != nil {
		return nil, err
	}
	mergesData, err := readTokenizerFile(mergesPath, "merges")
	if err != nil {
		return nil, err
	}
	return FromBytes(vocabData, mergesData, opts...)
}

// FromPretrained constructs a tokenizer from a directory containing
// vocab.json and merges.txt, the layout produced by GPT-2 style exports.
func FromPretrained(dir string, opts ...TokenizerOption) (*Tokenizer, error) {
	if dir == "" {
		return nil, errors.New("directory path cannot be empty")
	}
	return FromFiles(
		filepath.Join(dir, DefaultVocabFile),
		filepath.Join(dir, DefaultMergesFile),
		opts...,
	)
}

// FromBytes constructs a tokenizer from raw vocab.json and merges.txt
// contents.
func FromBytes(vocabData, mergesData []byte, opts ...TokenizerOption) (*Tokenizer, error) {
	if len(vocabData) == 0 {
		return nil, errors.New("vocabulary data cannot be empty")
	}
	tokenizer := &Tokenizer{
		splitPattern: GPT2SplitPattern,
		defaultEncodingOpts: EncodeOptions{
			ReturnTokens: true,
		},
	}
	for _, opt := range opts {
		if err := opt(tokenizer); err != nil {
			return nil, errors.Wrap(err, "failed to apply tokenizer option")
		}
	}
	vocab, err := NewVocabulary(vocabData, mergesData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tokenizer")
	}
	pretok, err := newPretokenizer(tokenizer.splitPattern)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tokenizer")
	}
	tokenizer.vocab = vocab
	tokenizer.pretok = pretok
	tokenizer.enc = newEncoder(vocab)
	return tokenizer, nil
}

func readTokenizerFile(path, kind string) ([]byte, error) {
	if path == "" {
		return nil, errors.Errorf("%s file path cannot be empty", kind)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Errorf("%s file does not exist at path: %s", kind, path)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to access %s file: %s", kind, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s file: %s", kind, path)
	}
	return data, nil
}

// Encode tokenizes the message and returns the ordered token ids. Attribute
// selection follows the tokenizer defaults unless encode options override it.
func (t *Tokenizer) Encode(message string, opts ...EncodeOption) (*EncodeResult, error) {
	if t.closed || t.enc == nil {
		return nil, ErrClosed
	}
	options := t.defaultEncodingOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, errors.Wrap(err, "failed to apply encoding option")
		}
	}

	pretokens, err := t.pretok.split(message)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode message")
	}

	result := &EncodeResult{IDs: []uint32{}}
	for _, pt := range pretokens {
		ids, err := t.enc.encodeWord(pt.text)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode message at offset %d", pt.offset)
		}
		result.IDs = append(result.IDs, ids...)
		if options.ReturnTokens {
			result.Tokens = append(result.Tokens, t.enc.tokens(ids)...)
		}
		if options.ReturnOffsets {
			start := pt.offset
			for _, token := range t.enc.tokens(ids) {
				end := start + len(decodeBytes(token))
				result.Offsets = append(result.Offsets, uint32(start), uint32(end))
				start = end
			}
		}
	}
	return result, nil
}

// Decode maps ids back to text by concatenating the token strings and
// reversing the byte-level encoding.
func (t *Tokenizer) Decode(ids []uint32) (string, error) {
	if t.closed || t.vocab == nil {
		return "", ErrClosed
	}
	var sb []byte
	for _, id := range ids {
		token, ok := t.vocab.Token(id)
		if !ok {
			return "", errors.Wrapf(ErrInvalidID, "id %d", id)
		}
		sb = append(sb, decodeBytes(token)...)
	}
	return string(sb), nil
}

// VocabSize returns the number of entries in the vocabulary.
func (t *Tokenizer) VocabSize() (uint32, error) {
	if t.closed || t.vocab == nil {
		return 0, ErrClosed
	}
	return t.vocab.Size(), nil
}

// Close releases the tokenizer tables. Further operations return ErrClosed.
func (t *Tokenizer) Close() error {
	t.closed = true
	t.vocab = nil
	t.pretok = nil
	t.enc = nil
	return nil
}
