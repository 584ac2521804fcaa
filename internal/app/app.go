package app

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/config"
	"github.com/vovakirdan/ledgerchat/internal/core"
	transporthttp "github.com/vovakirdan/ledgerchat/internal/transport/http"
)

// App runs the local API server on top of the wired components.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	refreshInterval time.Duration
	comps           *Components
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.APIConfig, comps *Components, logger *zerolog.Logger) *App {
	server := transporthttp.NewServer(transporthttp.Deps{
		Chat:     comps.Chat,
		Sessions: comps.Session,
		JWT:      comps.JWT,
		Gatherer: comps.Registry,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		refreshInterval: cfg.RefreshInterval,
		comps:           comps,
		log:             logger,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// The session is connected in the background so a pending authorization prompt
// does not delay the API.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.connect(ctx)
	if a.refreshInterval > 0 {
		go a.refreshLoop(ctx)
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting api server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

func (a *App) connect(ctx context.Context) {
	state, err := a.comps.Connect(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNoProvider) {
			a.log.Warn().Msg("no identity provider configured, api is read-only until ledger.rpc_url is set")
			return
		}
		a.log.Warn().Err(err).Msg("startup connect failed, retry with POST /api/connect")
		return
	}
	a.log.Info().Str("account", string(state.Account)).Msg("session ready")
}

// refreshLoop reloads the message list on every tick while connected.
func (a *App) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(a.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.comps.Session.State().Connected() {
				continue
			}
			if err := a.comps.Chat.Refresh(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("background refresh failed")
			}
		}
	}
}
