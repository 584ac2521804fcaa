package http

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/proto"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	chat     Chat
	sessions Sessions
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(chat Chat, sessions Sessions, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		chat:     chat,
		sessions: sessions,
		log:      logger,
	}
}

// ConnectResponse is the body returned by POST /api/connect.
type ConnectResponse struct {
	Session      proto.Session `json:"session"`
	RefreshError string        `json:"refresh_error,omitempty"`
}

// State returns the full snapshot.
// GET /api/state
func (h *APIHandlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, snapshotToProto(h.chat.Snapshot()))
}

// Connect binds an identity and loads the message list.
// POST /api/connect
func (h *APIHandlers) Connect(c *gin.Context) {
	h.connect(c, h.sessions.Connect)
}

// Reconnect drops the current binding and connects again, picking up an
// account change in the wallet.
// POST /api/reconnect
func (h *APIHandlers) Reconnect(c *gin.Context) {
	h.connect(c, h.sessions.Reconnect)
}

func (h *APIHandlers) connect(c *gin.Context, connectFn func(context.Context) (core.SessionState, error)) {
	ctx := c.Request.Context()

	state, err := connectFn(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("connect failed")
		if core.KindOf(err) == "" {
			// Provider refusals and RPC errors carry no kind.
			c.JSON(http.StatusBadGateway, proto.Error{Code: "provider_error", Msg: err.Error()})
			return
		}
		h.writeError(c, err)
		return
	}

	resp := ConnectResponse{Session: sessionToProto(state)}
	if err := h.chat.Refresh(ctx); err != nil {
		h.log.Warn().Err(err).Msg("initial refresh failed")
		resp.RefreshError = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh reloads the message list from the ledger.
// POST /api/refresh
func (h *APIHandlers) Refresh(c *gin.Context) {
	if err := h.chat.Refresh(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagesToProto(h.chat.Messages()))
}

// ListMessages returns the message list, optionally filtered to one account's conversation.
// GET /api/messages?account=0x...
func (h *APIHandlers) ListMessages(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		c.JSON(http.StatusOK, messagesToProto(h.chat.Messages()))
		return
	}
	if !common.IsHexAddress(account) {
		c.JSON(http.StatusBadRequest, proto.Error{Code: string(core.KindInvalidInput), Msg: "account must be a hex address"})
		return
	}
	c.JSON(http.StatusOK, messagesToProto(h.chat.Conversation(core.Account(account))))
}

// CountMessages reads the ledger's message count for an account, defaulting to
// the connected one.
// GET /api/messages/count?account=0x...
func (h *APIHandlers) CountMessages(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		state := h.sessions.State()
		if !state.Connected() {
			h.writeError(c, core.NewError(core.KindNotConnected, nil))
			return
		}
		account = string(state.Account)
	}
	if !common.IsHexAddress(account) {
		c.JSON(http.StatusBadRequest, proto.Error{Code: string(core.KindInvalidInput), Msg: "account must be a hex address"})
		return
	}

	n, err := h.chat.CountFor(c.Request.Context(), core.Account(account))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proto.Count{Account: account, Count: n})
}

// SendMessage runs the send pipeline and responds once the transaction is final.
// POST /api/messages
func (h *APIHandlers) SendMessage(c *gin.Context) {
	var req proto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, proto.Error{Code: string(core.KindInvalidInput), Msg: "invalid request body"})
		return
	}

	result, err := h.chat.Send(c.Request.Context(), core.Account(req.Receiver), req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := proto.SendResponse{
		ID:         result.ID,
		ContentRef: string(result.Ref),
		TxHash:     result.TxHash,
	}
	if result.RefreshErr != nil {
		resp.RefreshError = result.RefreshErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *APIHandlers) writeError(c *gin.Context, err error) {
	status, body := errorToProto(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, body)
}
