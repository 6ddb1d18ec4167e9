package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleProvider is the federated sign-in provider. It runs the authorization code flow and
// verifies the returned ID token against Google's published keys. The key set is cached and
// refreshed in the background; every fetch goes through the provider's circuit breaker.
type GoogleProvider struct {
	cfg        *oauth2.Config
	keys       keyfunc.Keyfunc
	issuers    []string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

var _ ports.FederatedProvider = (*GoogleProvider)(nil)

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// breakerTransport runs every round trip inside the breaker. 5xx answers count as failures.
type breakerTransport struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (t breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, fmt.Errorf("%s returned %d", req.URL.Host, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

// NewGoogleProvider builds the provider and loads Google's signing keys. A failed first load is
// logged, not returned; the key set retries on the next unknown key ID and on every refresh.
// ctx bounds the background refresh.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string, cb *gobreaker.CircuitBreaker, log *zap.SugaredLogger) (*GoogleProvider, error) {
	return newGoogleProvider(ctx, endpoints.Google, googleCertsURL, clientID, clientSecret, redirectURL, cb, log)
}

func newGoogleProvider(ctx context.Context, endpoint oauth2.Endpoint, certsURL, clientID, clientSecret, redirectURL string, cb *gobreaker.CircuitBreaker, log *zap.SugaredLogger) (*GoogleProvider, error) {
	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: breakerTransport{base: http.DefaultTransport, cb: cb},
	}

	keys, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{certsURL}, keyfunc.Override{
		Client:      httpClient,
		HTTPTimeout: 10 * time.Second,
		RefreshErrorHandlerFunc: func(u string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				log.Warnw("Google signing keys refresh failed", "url", u, "error", err)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google signing keys: %w", err)
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		keys:       keys,
		issuers:    []string{"accounts.google.com", "https://accounts.google.com"},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         cb,
	}, nil
}

func (g *GoogleProvider) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Exchange trades code for tokens and returns the verified identity behind the ID token.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (domain.Identity, error) {
	if code == "" {
		return domain.Identity{}, domain.NewAuthError("missing authorization code", domain.ErrUnauthenticated)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.cfg.Exchange(ctx, code)
	})
	if err != nil {
		return domain.Identity{}, domain.NewAuthError("code exchange failed", err)
	}

	idToken, _ := res.(*oauth2.Token).Extra("id_token").(string)
	if idToken == "" {
		return domain.Identity{}, domain.NewAuthError("no id_token in response", nil)
	}

	claims, err := g.verifyIDToken(ctx, idToken)
	if err != nil {
		return domain.Identity{}, domain.NewAuthError("id token rejected", err)
	}

	return domain.Identity{
		Email:       claims.Email,
		DisplayName: claims.Name,
		Provider:    domain.ProviderGoogle,
	}, nil
}

func (g *GoogleProvider) verifyIDToken(ctx context.Context, idToken string) (*googleClaims, error) {
	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, g.keys.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(g.cfg.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(g.issuers, claims.Issuer) {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, errors.New("email not verified")
	}
	return claims, nil
}
