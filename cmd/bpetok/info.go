package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	bpe "github.com/amikos-tech/bpe-tokenizer"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print tokenizer and cache information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]interface{}{}

			if activeCfg.Model != "" {
				cacheInfo, err := bpe.GetHFCacheInfo(activeCfg.Model)
				if err != nil {
					return err
				}
				info["cache"] = cacheInfo
			}

			tok, err := resolveTokenizer(activeCfg)
			if err == nil {
				defer func() { _ = tok.Close() }()
				if size, err := tok.VocabSize(); err == nil {
					info["vocab_size"] = size
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}
