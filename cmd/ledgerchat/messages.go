package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/ledgerchat/internal/core"
)

func newMessagesCmd(c *cli) *cobra.Command {
	var (
		account string
		count   bool
	)

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List ledger messages, optionally for one account's conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if account != "" && !common.IsHexAddress(account) {
				return fmt.Errorf("--account %q is not a hex address", account)
			}

			ctx := cmd.Context()
			comps, err := c.build(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			state, err := comps.Connect(ctx)
			if err != nil {
				return err
			}

			if count {
				target := state.Account
				if account != "" {
					target = core.Account(account)
				}
				n, err := comps.Chat.CountFor(ctx, target)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", target, n)
				return nil
			}

			records := comps.Chat.Messages()
			if account != "" {
				records = comps.Chat.Conversation(core.Account(account))
			}
			return printMessages(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "only messages sent or received by this address")
	cmd.Flags().BoolVar(&count, "count", false, "print the ledger's message count for the account instead of the list")
	return cmd
}

func printMessages(w io.Writer, records []core.MessageRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSENDER\tRECEIVER\tCONTENT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Time().UTC().Format(time.RFC3339), r.Sender, r.Receiver, r.ContentRef)
	}
	return tw.Flush()
}
