package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type DashboardHandler struct {
	dashboards ports.DashboardService
	log        *zap.SugaredLogger
}

func NewDashboardHandler(dashboards ports.DashboardService, log *zap.SugaredLogger) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, log: log}
}

// Dashboard renders the view of the caller's role. Section failures are reported inside the body
// and never fail the request.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	q, err := parseDashboardQuery(r)
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	switch session.Role {
	case domain.RoleCitizen:
		writeJSON(w, http.StatusOK, h.dashboards.Citizen(r.Context(), session, q), h.log)
	case domain.RoleCleaner:
		writeJSON(w, http.StatusOK, h.dashboards.Cleaner(r.Context(), session, q), h.log)
	case domain.RoleAdmin:
		writeJSON(w, http.StatusOK, h.dashboards.Admin(r.Context(), session, q), h.log)
	default:
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
	}
}

func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.dashboards.Analytics(r.Context())
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, a, h.log)
}
