package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any, log *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorw("failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error, log *zap.SugaredLogger) {
	status, kind, message := classify(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "kind", kind, "error", err)
	} else {
		log.Debugw("request rejected", "kind", kind, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message}, log)
}

func classify(err error) (int, string, string) {
	var (
		authErr   *domain.AuthError
		fetchErr  *domain.FetchError
		writeErr  *domain.WriteError
		uploadErr *domain.UploadError
		geoErr    *domain.GeolocationError
	)

	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "auth", authErr.Reason
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway, "upload", "failed to upload " + uploadErr.Filename
	case errors.As(err, &geoErr):
		return http.StatusUnprocessableEntity, "geolocation", geoErr.Reason
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden", "not permitted"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict", "already exists"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "auth", "sign in required"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "fetch", "failed to load " + fetchErr.Op
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError, "write", "failed to save " + writeErr.Op
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	return nil
}
