package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bpetok",
		Short:         "Byte-level BPE tokenizer (vocab.json + merges.txt)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd, cfgFile)
			if err != nil {
				return err
			}
			activeCfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	registerFlags(cmd.PersistentFlags())

	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newInfoCmd())

	return cmd
}
