package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode id [id...]",
		Short: "Decode a token id sequence back to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			tok, err := resolveTokenizer(activeCfg)
			if err != nil {
				return err
			}
			defer func() { _ = tok.Close() }()

			text, err := tok.Decode(ids)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func parseIDs(args []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid token id: %s", arg)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}
