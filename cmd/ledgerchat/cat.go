package main

import (
	"github.com/spf13/cobra"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

func newCatCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <cid>",
		Short: "Print the content stored under a CID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			defer comps.Close()

			data, err := comps.Content.Fetch(cmd.Context(), core.ContentRef(args[0]))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
