package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/ledgerchat/internal/app"
	"github.com/vovakirdan/ledgerchat/internal/config"
	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/log"
	"github.com/vovakirdan/ledgerchat/internal/wallet"
)

// cli carries state resolved by the root command for its subcommands.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "ledgerchat",
		Short:         "Chat over an ethereum ledger with message bodies on IPFS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format: console or json")

	root.AddCommand(
		newServeCmd(c),
		newSendCmd(c),
		newMessagesCmd(c),
		newAccountCmd(c),
		newTokenCmd(c),
		newCatCmd(c),
	)
	return root
}

// load resolves configuration: defaults < file < env < flags.
func (c *cli) load(cmd *cobra.Command) error {
	bootstrap := log.New("info", "console")

	cfg, path, err := config.Load(bootstrap, c.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	c.cfg = cfg
	c.logger = log.New(cfg.Log.Level, cfg.Log.Format)
	c.logger.Debug().Str("config", path).Msg("configuration loaded")
	return nil
}

// build wires the client with a prompter suited to the current stdin.
func (c *cli) build(ctx context.Context) (*app.Components, error) {
	return app.Build(ctx, c.cfg, c.prompter(), c.logger)
}

func (c *cli) prompter() wallet.Prompter {
	fd := int(os.Stdin.Fd())
	if c.cfg.Wallet.AutoApprove || !term.IsTerminal(fd) {
		return wallet.StaticPrompter{
			Account:     core.Account(c.cfg.Wallet.Account),
			Secret:      c.cfg.Wallet.Passphrase,
			AutoApprove: c.cfg.Wallet.AutoApprove,
		}
	}
	return wallet.NewTerminalPrompter(os.Stdin, os.Stderr, fd)
}
