package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config holds the resolved tokenizer source settings. Values come from
// flags, a BPETOK_-prefixed environment, or an optional config file, in that
// priority order.
type config struct {
	Vocab    string
	Merges   string
	Model    string
	Revision string
	CacheDir string
	Offline  bool
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("vocab", "", "Path to vocab.json")
	flags.String("merges", "", "Path to merges.txt")
	flags.String("model", "", "Hugging Face model ID (e.g. gpt2)")
	flags.String("revision", "main", "Model revision (branch, tag, or commit)")
	flags.String("cache-dir", "", "Override the model file cache directory")
	flags.Bool("offline", false, "Only use locally cached model files")
}

func loadConfig(cmd *cobra.Command, cfgFile string) (config, error) {
	v := viper.New()
	v.SetEnvPrefix("BPETOK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Persistent flags live on the root command regardless of which
	// subcommand triggered the load.
	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return config{}, errors.Wrap(err, "failed to bind flags")
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config{}, errors.Wrapf(err, "failed to read config file: %s", cfgFile)
		}
	}

	return config{
		Vocab:    v.GetString("vocab"),
		Merges:   v.GetString("merges"),
		Model:    v.GetString("model"),
		Revision: v.GetString("revision"),
		CacheDir: v.GetString("cache-dir"),
		Offline:  v.GetBool("offline"),
	}, nil
}
