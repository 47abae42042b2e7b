package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	bpe "github.com/amikos-tech/bpe-tokenizer"
)

func newEncodeCmd() *cobra.Command {
	var showTokens bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode text and print the token id sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			tok, err := resolveTokenizer(activeCfg)
			if err != nil {
				return err
			}
			defer func() { _ = tok.Close() }()

			result, err := tok.Encode(text, bpe.WithReturnTokens())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(encodeOutput{
					IDs:    result.IDs,
					Tokens: result.Tokens,
				})
			}
			if _, err := fmt.Fprintln(out, formatIDs(result.IDs)); err != nil {
				return err
			}
			if showTokens {
				if _, err := fmt.Fprintln(out, strings.Join(result.Tokens, "|")); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "Also print the token strings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print ids and tokens as JSON")
	return cmd
}

type encodeOutput struct {
	IDs    []uint32 `json:"ids"`
	Tokens []string `json:"tokens,omitempty"`
}

// inputText joins the positional arguments, or reads stdin when none are
// given.
func inputText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "failed to read stdin")
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

// formatIDs renders the id sequence as a single bracketed line.
func formatIDs(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
