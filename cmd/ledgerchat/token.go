package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ledgerchat/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(c.cfg.API.JWTSecret),
				Issuer:   c.cfg.API.JWTIssuer,
				Audience: c.cfg.API.JWTAudience,
				TTL:      c.cfg.API.TokenTTL,
			}, subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	return cmd
}
