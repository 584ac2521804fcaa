package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/auth"
	"github.com/vovakirdan/ledgerchat/internal/config"
	"github.com/vovakirdan/ledgerchat/internal/core"
)

// Chat is the orchestrator surface the API exposes.
type Chat interface {
	Refresh(ctx context.Context) error
	Send(ctx context.Context, receiver core.Account, message string) (*core.SendResult, error)
	Messages() []core.MessageRecord
	Conversation(account core.Account) []core.MessageRecord
	CountFor(ctx context.Context, account core.Account) (uint64, error)
	Snapshot() core.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Sessions connects the identity provider.
type Sessions interface {
	Connect(ctx context.Context) (core.SessionState, error)
	Reconnect(ctx context.Context) (core.SessionState, error)
	State() core.SessionState
}

// Deps groups what the server needs. Gatherer may be nil to disable /metrics.
type Deps struct {
	Chat     Chat
	Sessions Sessions
	JWT      *auth.JWTConfig
	Gatherer prometheus.Gatherer
}

// NewServer builds the HTTP server with the local API routes.
func NewServer(deps Deps, cfg config.APIConfig, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires routes and middleware.
func NewRouter(deps Deps, cfg config.APIConfig, logger *zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	handlers := NewAPIHandlers(deps.Chat, deps.Sessions, logger)
	ws := NewWSHandler(deps.Chat, logger)
	limiter := newRateLimiter(cfg.SendsPerMinute)

	api := router.Group("/api")
	api.Use(OriginMiddleware(logger))
	if deps.JWT.Enabled() {
		api.Use(AuthMiddleware(deps.JWT, logger))
	}
	api.GET("/state", handlers.State)
	api.POST("/connect", handlers.Connect)
	api.POST("/reconnect", handlers.Reconnect)
	api.POST("/refresh", handlers.Refresh)
	api.GET("/messages", handlers.ListMessages)
	api.GET("/messages/count", handlers.CountMessages)
	api.POST("/messages", RequireJSONMiddleware(), RateLimitMiddleware(limiter), handlers.SendMessage)
	api.GET("/ws", gin.WrapH(ws))

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
