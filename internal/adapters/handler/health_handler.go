package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const checkTimeout = 5 * time.Second

// Dependency is a named readiness probe, e.g. the database or redis ping.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	deps      []Dependency
	startTime time.Time
	version   string
	log       *zap.SugaredLogger
}

func NewHealthHandler(version string, log *zap.SugaredLogger, deps ...Dependency) *HealthHandler {
	if version == "" {
		version = "unknown"
	}
	return &HealthHandler{
		deps:      deps,
		startTime: time.Now(),
		version:   version,
		log:       log,
	}
}

// HealthResponse follows Kubernetes/OpenShift health check conventions
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health is a simple liveness check - just confirms the Go process is running
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    map[string]Check{"process": {Status: "UP"}},
	}, h.log)
}

// Ready checks if the service is ready to accept traffic (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]Check, len(h.deps))
	status := "UP"
	httpStatus := http.StatusOK

	for _, dep := range h.deps {
		c := h.check(r.Context(), dep)
		checks[dep.Name] = c
		if c.Status != "UP" {
			status = "DOWN"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status": status,
		"checks": checks,
	}, h.log)
}

// Live is an alias for Health - simple liveness check
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}

func (h *HealthHandler) check(ctx context.Context, dep Dependency) Check {
	if dep.Check == nil {
		return Check{Status: "DOWN", Message: dep.Name + " is not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := dep.Check(ctx); err != nil {
		h.log.Warnw("Readiness check failed", "dependency", dep.Name, "error", err)
		return Check{Status: "DOWN", Message: "Cannot connect to " + dep.Name}
	}
	return Check{Status: "UP"}
}
