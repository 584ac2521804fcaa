package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/wallet"
)

func newAccountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage keystore accounts and their authorization",
	}
	cmd.AddCommand(newAccountNewCmd(c), newAccountListCmd(c), newAccountRevokeCmd(c))
	return cmd
}

func newAccountNewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a new keystore account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			passphrase := c.cfg.Wallet.Passphrase
			if passphrase == "" {
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return errors.New("no passphrase: set wallet.passphrase or run on a terminal")
				}
				p, err := wallet.NewTerminalPrompter(os.Stdin, os.Stderr, fd).Passphrase(ctx, "new account")
				if err != nil {
					return err
				}
				passphrase = p
			}

			comps, err := c.build(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			addr, err := comps.Wallet.NewAccount(passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
}

func newAccountListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keystore accounts and whether they are authorized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			comps, err := c.build(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			authorized, err := comps.Wallet.Accounts(ctx)
			if err != nil {
				return err
			}
			granted := make(map[core.Account]bool, len(authorized))
			for _, a := range authorized {
				granted[a] = true
			}

			out := cmd.OutOrStdout()
			for _, a := range comps.Wallet.Keys() {
				mark := " "
				if granted[a] {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\n", mark, a)
			}
			return nil
		},
	}
}

func newAccountRevokeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <address>",
		Short: "Revoke an account's authorization; the next connect prompts again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%q is not a hex address", args[0])
			}

			ctx := cmd.Context()
			comps, err := c.build(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			return comps.Wallet.Revoke(ctx, core.Account(args[0]))
		},
	}
}
