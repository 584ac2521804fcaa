package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ledgerchat/internal/proto"
	"github.com/vovakirdan/ledgerchat/internal/utils"
)

// WSHandler upgrades HTTP connections and streams state snapshots.
// A snapshot is written on connect and after every change; changes that arrive
// while a write is in progress collapse into one snapshot.
type WSHandler struct {
	chat Chat
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(chat Chat, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{chat: chat, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: localOriginPatterns,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	clientID := utils.NewID()
	logger := h.log.With().Str("client_id", clientID).Logger()
	logger.Debug().Msg("ws client connected")

	updates, unsubscribe := h.chat.Subscribe()
	defer unsubscribe()

	// Inbound frames are not part of the protocol; CloseRead handles control frames
	// and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	err = h.writeLoop(ctx, conn, updates)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			status = websocket.StatusInternalError
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, updates <-chan struct{}) error {
	if err := h.writeSnapshot(ctx, conn); err != nil {
		return err
	}
	for {
		select {
		case <-updates:
			if err := h.writeSnapshot(ctx, conn); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeSnapshot(ctx context.Context, conn *websocket.Conn) error {
	snapshot := snapshotToProto(h.chat.Snapshot())
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:     proto.OutboundTypeSnapshot,
		Protocol: proto.ProtocolVersion,
		Data:     &snapshot,
	})
}
