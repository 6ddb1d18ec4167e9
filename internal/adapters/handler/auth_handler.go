package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	stateCookie   = "oauth_state"
	stateLifetime = 10 * time.Minute
	// AfterLoginPath is where the federated callback lands the browser.
	AfterLoginPath = "/dashboard"
)

type AuthHandler struct {
	authService   ports.AuthService
	profiles      ports.ProfileService
	secureCookies bool
	googleEnabled bool
	log           *zap.SugaredLogger
}

func NewAuthHandler(auth ports.AuthService, profiles ports.ProfileService, secureCookies, googleEnabled bool, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		authService:   auth,
		profiles:      profiles,
		secureCookies: secureCookies,
		googleEnabled: googleEnabled,
		log:           log,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginOptions is served at the login entry point that gated routes redirect to.
type LoginOptions struct {
	Message string   `json:"message"`
	Methods []string `json:"methods"`
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	methods := []string{"password"}
	if h.googleEnabled {
		methods = append(methods, "google")
	}
	writeJSON(w, http.StatusOK, LoginOptions{Message: "sign in required", Methods: methods}, h.log)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.log)
		return
	}

	signed, err := h.authService.Login(r.Context(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	h.setSessionCookie(w, signed)
	writeJSON(w, http.StatusOK, signed, h.log)
}

// Register is self-registration; it always provisions a citizen.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.log)
		return
	}

	signed, err := h.authService.RegisterAndProvision(r.Context(),
		domain.Credentials{Email: req.Email, Password: req.Password}, req.DisplayName, domain.RoleCitizen)
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	h.setSessionCookie(w, signed)
	writeJSON(w, http.StatusCreated, signed, h.log)
}

// GoogleLogin starts the federated flow and remembers the state in a short-lived cookie.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, state, err := h.authService.FederatedLoginURL()
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		Expires:  time.Now().Add(stateLifetime),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		writeError(w, domain.NewAuthError("invalid sign-in state", nil), h.log)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/auth/google", MaxAge: -1})

	if reason := r.URL.Query().Get("error"); reason != "" {
		writeError(w, domain.NewAuthError("sign-in cancelled: "+reason, nil), h.log)
		return
	}

	signed, err := h.authService.LoginWithFederatedProvider(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	h.setSessionCookie(w, signed)
	http.Redirect(w, r, AfterLoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	if err := h.authService.Logout(r.Context(), session); err != nil {
		writeError(w, err, h.log)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// MeResponse is the caller's identity plus their profile.
type MeResponse struct {
	Identity domain.Identity `json:"identity"`
	Profile  *domain.Profile `json:"profile"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	profile, err := h.profiles.Me(r.Context(), session)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{Identity: session.Identity, Profile: profile}, h.log)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, signed *domain.SignedSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    signed.Token,
		Path:     "/",
		Expires:  signed.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
