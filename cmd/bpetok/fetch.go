package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	bpe "github.com/amikos-tech/bpe-tokenizer"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download a model's vocab.json and merges.txt into the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if activeCfg.Model == "" {
				return errors.New("--model is required")
			}
			if err := bpe.DownloadAndCacheModel(activeCfg.Model, hfOptions(activeCfg)...); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cached %s\n", activeCfg.Model)
			return err
		},
	}
}
