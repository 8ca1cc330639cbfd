package websocket

import (
	"context"
	"net/http"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/AlibekovAA/devicehub/internal/common/config"
	"github.com/AlibekovAA/devicehub/internal/common/constants"
	"github.com/AlibekovAA/devicehub/internal/common/crypto"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
)

// Handler upgrades /ws requests into device sessions. Devices identify
// with a "user" frame after the upgrade, so the route itself is public.
type Handler struct {
	manager  *SessionManager
	upgrader gorillaWS.Upgrader
	cfg      config.WebSocketConfig
	ids      crypto.IDGenerator
	log      *logger.Logger
	baseCtx  context.Context
}

func NewHandler(baseCtx context.Context, manager *SessionManager, cfg config.WebSocketConfig, log *logger.Logger) *Handler {
	return &Handler{
		manager: manager,
		upgrader: gorillaWS.Upgrader{
			ReadBufferSize:  constants.WebSocketReadBufferSize,
			WriteBufferSize: constants.WebSocketWriteBufferSize,
			// Devices are not browsers and send no meaningful Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		cfg:     cfg,
		ids:     crypto.NewULIDGenerator(),
		log:     log,
		baseCtx: baseCtx,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"remote_addr": r.RemoteAddr,
			"action":      "ws_upgrade_failed",
		}).Warnf("websocket upgrade failed: %v", err)
		return
	}

	id, err := h.ids.NewID()
	if err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": "ws_id_failed",
		}).Errorf("failed to generate connection id: %v", err)
		_ = conn.Close()
		return
	}

	// The request context ends with the handler; the session outlives it.
	client := NewClient(h.baseCtx, id, conn, h.manager, h.cfg, h.log)
	client.Start()

	h.log.WithFields(r.Context(), logger.Fields{
		"conn_id":     id,
		"remote_addr": r.RemoteAddr,
		"action":      "ws_connected",
	}).Info("device connected")
}
