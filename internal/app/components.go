package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/auth"
	"github.com/vovakirdan/ledgerchat/internal/config"
	"github.com/vovakirdan/ledgerchat/internal/content"
	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/ledger"
	"github.com/vovakirdan/ledgerchat/internal/metrics"
	"github.com/vovakirdan/ledgerchat/internal/session"
	"github.com/vovakirdan/ledgerchat/internal/store"
	"github.com/vovakirdan/ledgerchat/internal/store/sqlite"
	"github.com/vovakirdan/ledgerchat/internal/wallet"
)

// Components is the wired client shared by the server and the one-shot commands.
type Components struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Grants   store.GrantStore
	Wallet   *wallet.Provider
	Content  *content.Resolver
	Session  *session.Manager
	Chat     *core.Orchestrator
	JWT      *auth.JWTConfig

	eth *ethclient.Client
	log *zerolog.Logger
}

// Build wires every component from cfg. Without ledger.rpc_url the session has no
// provider and Connect fails with core.ErrNoProvider; the wallet still works offline.
func Build(ctx context.Context, cfg config.Config, prompt wallet.Prompter, logger *zerolog.Logger) (*Components, error) {
	c := &Components{
		Registry: prometheus.NewRegistry(),
		log:      logger,
	}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.New(c.Registry)

	grants, err := sqlite.New(cfg.Wallet.GrantsDB)
	if err != nil {
		return nil, fmt.Errorf("init grant store: %w", err)
	}
	c.Grants = grants
	logger.Debug().Str("db_path", cfg.Wallet.GrantsDB).Msg("grant store initialized")

	var chain wallet.ChainIDReader
	if cfg.Ledger.RPCURL != "" {
		eth, err := ethclient.DialContext(ctx, cfg.Ledger.RPCURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("dial rpc %s: %w", cfg.Ledger.RPCURL, err)
		}
		c.eth = eth
		chain = eth
		logger.Info().Str("rpc_url", cfg.Ledger.RPCURL).Msg("ledger rpc connected")
	} else {
		logger.Warn().Msg("ledger.rpc_url not set, running without identity provider")
	}

	contract := common.HexToAddress(cfg.Ledger.ContractAddress)
	c.Wallet = wallet.New(wallet.Options{
		KeystoreDir: cfg.Wallet.KeystoreDir,
		LightScrypt: cfg.Wallet.LightScrypt,
		Origin:      contract.Hex(),
		ChainID:     cfg.Ledger.ChainID,
	}, grants, prompt, chain, logger)

	c.Content = content.New(content.Config{
		Protocol:      cfg.Content.Protocol,
		Host:          cfg.Content.Host,
		Port:          cfg.Content.Port,
		ProjectID:     cfg.Content.ProjectID,
		ProjectSecret: cfg.Content.ProjectSecret,
		Pin:           cfg.Content.Pin,
		Timeout:       cfg.Content.Timeout,
	}, logger)

	var provider session.Provider
	var bindGateway session.BindFunc
	if c.eth != nil {
		provider = c.Wallet
		client := ledger.NewClient(contract, c.eth, cfg.Ledger.FinalityTimeout, logger)
		bindGateway = func(account core.Account, signer *bind.TransactOpts) (session.Gateway, error) {
			gw, err := client.Bind(account, signer)
			if err != nil {
				return nil, err
			}
			return gw, nil
		}
	}

	var chat *core.Orchestrator
	c.Session = session.NewManager(provider, bindGateway, logger,
		session.WithMetrics(c.Metrics),
		session.WithOnChange(func(core.SessionState) {
			if chat != nil {
				chat.Notify()
			}
		}),
	)
	chat = core.NewOrchestrator(c.Session, c.Content, c.Metrics, logger)
	c.Chat = chat

	c.JWT = &auth.JWTConfig{
		Secret:   []byte(cfg.API.JWTSecret),
		Issuer:   cfg.API.JWTIssuer,
		Audience: cfg.API.JWTAudience,
		TTL:      cfg.API.TokenTTL,
	}

	return c, nil
}

// Connect connects the session and loads the message list. A failed load is logged
// and returned without undoing the connection.
func (c *Components) Connect(ctx context.Context) (core.SessionState, error) {
	state, err := c.Session.Connect(ctx)
	if err != nil {
		return state, err
	}
	if err := c.Chat.Refresh(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial refresh failed")
		return state, err
	}
	return state, nil
}

// Close releases the session, the RPC connection and the grant store.
func (c *Components) Close() {
	if c.Session != nil {
		c.Session.Disconnect()
	}
	if c.eth != nil {
		c.eth.Close()
	}
	if c.Grants != nil {
		if err := c.Grants.Close(); err != nil {
			c.log.Warn().Err(err).Msg("failed to close grant store")
		} else {
			c.log.Debug().Msg("grant store closed")
		}
	}
}
