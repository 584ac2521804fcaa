package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

func newSendCmd(c *cli) *cobra.Command {
	var to, message string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message and wait until its transaction is final",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			comps, err := c.build(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			if _, err := comps.Session.Connect(ctx); err != nil {
				return err
			}

			result, err := comps.Chat.Send(ctx, core.Account(to), message)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "content: %s\n", result.Ref)
			fmt.Fprintf(out, "tx:      %s\n", result.TxHash)
			if result.RefreshErr != nil {
				c.logger.Warn().Err(result.RefreshErr).Msg("message sent but the list could not be reloaded")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "receiver address")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	return cmd
}
