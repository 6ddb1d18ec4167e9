package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/metrics"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

// Routes groups everything the mux needs. Tree selects which role's routes are mounted.
type Routes struct {
	Tree domain.Role

	Gate         *middleware.Gate
	LoginLimiter *middleware.RateLimiter
	Metrics      *metrics.Collectors
	Origins      []string

	Auth       *AuthHandler
	Reports    *ReportHandler
	Dashboards *DashboardHandler
	Users      *UserHandler
	Home       *HomeHandler
	Live       *LiveHandler
	Health     *HealthHandler

	Log *zap.SugaredLogger
}

func NewRouter(rt Routes) http.Handler {
	mux := http.NewServeMux()
	gate := rt.Gate

	limited := func(h http.HandlerFunc) http.HandlerFunc {
		if rt.LoginLimiter == nil {
			return h
		}
		return rt.LoginLimiter.Limit(rt.Log, h)
	}

	// Health endpoints (OpenShift compatible)
	mux.HandleFunc("GET /health", rt.Health.Health)
	mux.HandleFunc("GET /health/ready", rt.Health.Ready)
	mux.HandleFunc("GET /health/live", rt.Health.Live)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics.Handler())
	}

	// Shared views
	mux.HandleFunc("GET /{$}", gate.Optional(rt.Home.Home))
	mux.HandleFunc("GET /login", rt.Auth.LoginPage)
	mux.HandleFunc("POST /login", limited(rt.Auth.Login))
	mux.HandleFunc("POST /register", limited(rt.Auth.Register))
	mux.HandleFunc("GET /auth/google", rt.Auth.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", rt.Auth.GoogleCallback)
	mux.HandleFunc("POST /logout", gate.RequireAuth(rt.Auth.Logout))
	mux.HandleFunc("GET /me", gate.RequireAuth(rt.Auth.Me))
	mux.HandleFunc("GET /ws", gate.RequireAuth(rt.Live.Connect))

	// Role tree
	role := func(h http.HandlerFunc) http.HandlerFunc {
		return gate.RequireRole([]domain.Role{rt.Tree}, middleware.LoginPath, h)
	}
	mux.HandleFunc("GET /dashboard", role(rt.Dashboards.Dashboard))
	mux.HandleFunc("GET /reports", role(rt.Reports.ListAll))

	switch rt.Tree {
	case domain.RoleCitizen:
		mux.HandleFunc("POST /report", role(rt.Reports.Create))
		mux.HandleFunc("GET /reports/mine", role(rt.Reports.ListMine))
	case domain.RoleCleaner:
		mux.HandleFunc("GET /reports/actionable", role(rt.Reports.ListActionable))
		mux.HandleFunc("GET /reports/assigned", role(rt.Reports.ListAssigned))
		mux.HandleFunc("PATCH /reports/{id}/status", role(rt.Reports.UpdateStatus))
	case domain.RoleAdmin:
		mux.HandleFunc("PATCH /reports/{id}/status", role(rt.Reports.UpdateStatus))
		mux.HandleFunc("DELETE /reports/{id}", role(rt.Reports.Delete))
		mux.HandleFunc("GET /users", role(rt.Users.List))
		mux.HandleFunc("PATCH /users/{id}", role(rt.Users.Update))
		mux.HandleFunc("GET /analytics", role(rt.Dashboards.Analytics))
	}

	// metrics must wrap the mux directly so r.Pattern is visible after routing
	var h http.Handler = mux
	if rt.Metrics != nil {
		h = rt.Metrics.Middleware(mux)
	}
	return middleware.Chain(h,
		middleware.SecurityHeadersMiddleware(),
		middleware.CORSMiddleware(rt.Origins),
		middleware.LoggingMiddleware(rt.Log),
	)
}
