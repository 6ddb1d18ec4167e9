package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	// LoginPath is where unauthenticated callers are sent.
	LoginPath = "/login"
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session"
)

type contextKey string

const sessionKey contextKey = "session"

// Gate is the access gate in front of protected routes: RequireAuth checks that the caller is
// signed in, RequireRole additionally checks the resolved role.
type Gate struct {
	sessions ports.SessionResolver
	log      *zap.SugaredLogger
}

func NewGate(sessions ports.SessionResolver, log *zap.SugaredLogger) *Gate {
	return &Gate{sessions: sessions, log: log}
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session the gate attached to the request.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok && s.Authenticated()
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth answers 503 pending while sessions are still being restored and redirects
// callers without a valid session to the login entry point.
func (g *Gate) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(WithSession(r.Context(), session)))
	}
}

// RequireRole composes RequireAuth with a role check. A session whose role could not be resolved
// is treated as unauthenticated; a resolved role outside roles is sent to fallback (the login
// entry point when empty).
func (g *Gate) RequireRole(roles []domain.Role, fallback string, next http.HandlerFunc) http.HandlerFunc {
	if fallback == "" {
		fallback = LoginPath
	}
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := g.authenticate(w, r)
		if !ok {
			return
		}

		if session.Role == "" {
			g.log.Debugw("session has no resolved role", "subject", session.Identity.ID, "path", r.URL.Path)
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		if !session.Role.In(roles...) {
			g.log.Debugw("role not permitted", "subject", session.Identity.ID, "role", session.Role,
				"allowed", roles, "path", r.URL.Path)
			http.Redirect(w, r, fallback, http.StatusSeeOther)
			return
		}

		next(w, r.WithContext(WithSession(r.Context(), session)))
	}
}

// Optional attaches the session when one is present and valid, and otherwise passes through.
func (g *Gate) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := TokenFromRequest(r); token != "" && !g.sessions.Loading() {
			if session, err := g.sessions.Resolve(r.Context(), token); err == nil {
				r = r.WithContext(WithSession(r.Context(), session))
			}
		}
		next(w, r)
	}
}

func (g *Gate) authenticate(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	if g.sessions.Loading() {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
		return nil, false
	}

	session, err := g.sessions.Resolve(r.Context(), TokenFromRequest(r))
	if err != nil {
		g.log.Debugw("unauthenticated request", "path", r.URL.Path, "error", err)
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return nil, false
	}
	return session, true
}
