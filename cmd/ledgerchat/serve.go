package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ledgerchat/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr            string
		refreshInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP/websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg.API
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("refresh-interval") {
				cfg.RefreshInterval = refreshInterval
			}

			comps, err := c.build(cmd.Context())
			if err != nil {
				return err
			}
			defer comps.Close()

			if err := app.New(cfg, comps, c.logger).Run(cmd.Context()); err != nil {
				return err
			}
			c.logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides api.addr)")
	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "background refresh period, 0 disables (overrides api.refresh_interval)")
	return cmd
}
