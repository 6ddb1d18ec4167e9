package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

// HomeResponse is the shared landing view. Signed-in callers also get their role.
type HomeResponse struct {
	Service       string      `json:"service"`
	Tree          domain.Role `json:"tree"`
	Authenticated bool        `json:"authenticated"`
	Role          domain.Role `json:"role,omitempty"`
	Links         []string    `json:"links"`
}

type HomeHandler struct {
	tree domain.Role
	log  *zap.SugaredLogger
}

func NewHomeHandler(tree domain.Role, log *zap.SugaredLogger) *HomeHandler {
	return &HomeHandler{tree: tree, log: log}
}

func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	resp := HomeResponse{
		Service: "smart-waste",
		Tree:    h.tree,
		Links:   []string{middleware.LoginPath, "/register"},
	}
	if session, ok := middleware.SessionFromContext(r.Context()); ok && session.Authenticated() {
		resp.Authenticated = true
		resp.Role = session.Role
		resp.Links = []string{AfterLoginPath, "/reports", "/me"}
	}
	writeJSON(w, http.StatusOK, resp, h.log)
}
