package http

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/auth"
	"github.com/kurspanel/kurspanel-server/internal/core"
	"github.com/kurspanel/kurspanel-server/internal/proto"
)

// WSHandler bridges store subscriptions to websocket push channels. Frames
// flow one way, server to client; the read side only watches for close.
type WSHandler struct {
	store       core.RecordStore
	authService *auth.Service
	log         *zerolog.Logger
}

// NewWSHandler builds a new websocket push handler.
func NewWSHandler(store core.RecordStore, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{store: store, authService: authService, log: logger}
}

// Schools serves the school snapshot push channel.
// GET /ws/schools?token=...
func (h *WSHandler) Schools(c *gin.Context) {
	h.serve(c, func(send func(proto.Outbound)) (func(), error) {
		return h.store.SubscribeSchools(func(snapshot []core.School, err error) {
			if err != nil {
				send(proto.Outbound{Type: proto.OutboundTypeError, Error: err.Error()})
				return
			}
			send(proto.Outbound{Type: proto.OutboundTypeSnapshot, Schools: proto.FromSnapshot(snapshot)})
		})
	})
}

// Messages serves the chat message push channel.
// GET /ws/messages?token=...
func (h *WSHandler) Messages(c *gin.Context) {
	h.serve(c, func(send func(proto.Outbound)) (func(), error) {
		return h.store.SubscribeMessages(func(msg core.Message, err error) {
			if err != nil {
				send(proto.Outbound{Type: proto.OutboundTypeError, Error: err.Error()})
				return
			}
			dto := proto.FromMessage(msg)
			send(proto.Outbound{Type: proto.OutboundTypeMessage, Message: &dto})
		})
	})
}

// serve upgrades the connection, opens the subscription and runs the write
// loop until the client goes away or the write fails.
func (h *WSHandler) serve(c *gin.Context, subscribe func(send func(proto.Outbound)) (func(), error)) {
	if _, err := h.authService.Validate(c.Query("token")); err != nil {
		c.JSON(http.StatusUnauthorized, proto.ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	// Write-only channel: CloseRead cancels the context once the client
	// closes or sends anything unexpected.
	ctx := conn.CloseRead(c.Request.Context())

	frames := make(chan proto.Outbound, 64)
	done := make(chan struct{})
	defer close(done)

	send := func(frame proto.Outbound) {
		select {
		case frames <- frame:
		case <-done:
		}
	}

	unsub, err := subscribe(send)
	if err != nil {
		h.log.Error().Err(err).Msg("ws subscribe error")
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closing")
			return
		case frame := <-frames:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Debug().Err(err).Msg("ws write failed")
				return
			}
		}
	}
}
