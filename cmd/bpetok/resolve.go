package main

import (
	"github.com/pkg/errors"

	bpe "github.com/amikos-tech/bpe-tokenizer"
)

// resolveTokenizer constructs a tokenizer from the active configuration:
// 1. Explicit --vocab/--merges paths
// 2. --model, fetched from the Hugging Face hub (cache first)
// 3. vocab.json + merges.txt in the working directory
func resolveTokenizer(cfg config) (*bpe.Tokenizer, error) {
	switch {
	case cfg.Vocab != "" || cfg.Merges != "":
		if cfg.Vocab == "" || cfg.Merges == "" {
			return nil, errors.New("--vocab and --merges must be provided together")
		}
		return bpe.FromFiles(cfg.Vocab, cfg.Merges)
	case cfg.Model != "":
		return bpe.FromHuggingFace(cfg.Model, hfOptions(cfg)...)
	default:
		tok, err := bpe.FromFiles(bpe.DefaultVocabFile, bpe.DefaultMergesFile)
		if err != nil {
			return nil, errors.Wrap(err, "no tokenizer source configured (pass --vocab/--merges or --model)")
		}
		return tok, nil
	}
}

func hfOptions(cfg config) []bpe.TokenizerOption {
	opts := []bpe.TokenizerOption{
		bpe.WithHFRevision(cfg.Revision),
		bpe.WithHFOfflineMode(cfg.Offline),
	}
	if cfg.CacheDir != "" {
		opts = append(opts, bpe.WithHFCacheDir(cfg.CacheDir))
	}
	return opts
}
