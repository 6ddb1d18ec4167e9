package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/live"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
)

// LiveHandler upgrades authenticated callers to the refresh-hint websocket.
type LiveHandler struct {
	hub      *live.Hub
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewLiveHandler(hub *live.Hub, allowedOrigins []string, log *zap.SugaredLogger) *LiveHandler {
	return &LiveHandler{hub: hub, upgrader: live.Upgrader(allowedOrigins), log: log}
}

func (h *LiveHandler) Connect(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	if err := h.hub.Serve(&h.upgrader, w, r, session.Identity.ID); err != nil {
		// the upgrader has already written the error response
		h.log.Debugw("Websocket upgrade failed", "subject", session.Identity.ID, "error", err)
	}
}
