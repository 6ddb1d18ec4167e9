package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type UserHandler struct {
	profiles ports.ProfileService
	log      *zap.SugaredLogger
}

func NewUserHandler(profiles ports.ProfileService, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{profiles: profiles, log: log}
}

// List returns every profile, or only those of ?role=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	var role domain.Role
	if v := r.URL.Query().Get("role"); v != "" {
		parsed, ok := domain.ParseRole(v)
		if !ok {
			writeError(w, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, v), h.log)
			return
		}
		role = parsed
	}

	users, err := h.profiles.ListUsers(r.Context(), role)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, users, h.log)
}

type UpdateUserRequest struct {
	Role         *string `json:"role,omitempty"`
	AssignedArea *string `json:"assignedArea,omitempty"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())

	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.log)
		return
	}

	var upd domain.ProfileUpdate
	if req.Role != nil {
		role, ok := domain.ParseRole(*req.Role)
		if !ok {
			writeError(w, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, *req.Role), h.log)
			return
		}
		upd.Role = &role
	}
	upd.AssignedArea = req.AssignedArea

	profile, err := h.profiles.UpdateUser(r.Context(), session, r.PathValue("id"), upd)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, profile, h.log)
}
