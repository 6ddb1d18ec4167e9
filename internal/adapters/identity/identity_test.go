package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/test/mocks"
)

func TestPasswordProvider_SignUpAndSignIn(t *testing.T) {
	repo := mocks.NewMockIdentityRepository()
	p := NewPasswordProvider(repo, bcrypt.MinCost)
	ctx := context.Background()

	created, err := p.SignUp(ctx, domain.Credentials{Email: " Asha@Example.com ", Password: "secret1"}, "Asha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Email != "asha@example.com" {
		t.Errorf("expected normalized email, got %q", created.Email)
	}
	if created.PasswordHash == "secret1" || created.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	got, err := p.SignIn(ctx, domain.Credentials{Email: "ASHA@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected identity %q, got %q", created.ID, got.ID)
	}
}

func TestPasswordProvider_Failures(t *testing.T) {
	repo := mocks.NewMockIdentityRepository()
	p := NewPasswordProvider(repo, bcrypt.MinCost)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, domain.Credentials{Email: "asha@example.com", Password: "secret1"}, "Asha"); err != nil {
		t.Fatal(err)
	}
	repo.Seed(domain.Identity{ID: "g1", Email: "fed@example.com", Provider: domain.ProviderGoogle})

	tests := []struct {
		name   string
		call   func() error
		reason string
	}{
		{"wrong password", func() error {
			_, err := p.SignIn(ctx, domain.Credentials{Email: "asha@example.com", Password: "nope123"})
			return err
		}, "invalid credentials"},
		{"unknown email", func() error {
			_, err := p.SignIn(ctx, domain.Credentials{Email: "ghost@example.com", Password: "secret1"})
			return err
		}, "invalid credentials"},
		{"federated identity has no password", func() error {
			_, err := p.SignIn(ctx, domain.Credentials{Email: "fed@example.com", Password: "secret1"})
			return err
		}, "invalid credentials"},
		{"duplicate email", func() error {
			_, err := p.SignUp(ctx, domain.Credentials{Email: "ASHA@example.com", Password: "secret1"}, "Other")
			return err
		}, "email already in use"},
		{"weak password", func() error {
			_, err := p.SignUp(ctx, domain.Credentials{Email: "new@example.com", Password: "12345"}, "New")
			return err
		}, "weak password"},
		{"invalid email", func() error {
			_, err := p.SignUp(ctx, domain.Credentials{Email: "not-an-email", Password: "secret1"}, "New")
			return err
		}, "invalid email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var authErr *domain.AuthError
			if err := tt.call(); !errors.As(err, &authErr) || authErr.Reason != tt.reason {
				t.Errorf("expected AuthError %q, got %v", tt.reason, err)
			}
		})
	}
}

func TestPasswordProvider_StoreFailure(t *testing.T) {
	repo := mocks.NewMockIdentityRepository()
	repo.FindError = errors.New("connection refused")
	p := NewPasswordProvider(repo, bcrypt.MinCost)

	_, err := p.SignIn(context.Background(), domain.Credentials{Email: "a@example.com", Password: "secret1"})
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) || authErr.Reason != "sign-in unavailable" {
		t.Errorf("expected sign-in unavailable, got %v", err)
	}
}

type googleStub struct {
	key       *rsa.PrivateKey
	idClaims  jwt.MapClaims
	certsHits atomic.Int32
}

func (s *googleStub) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, s.idClaims)
		tok.Header["kid"] = "k1"
		signed, err := tok.SignedString(s.key)
		if err != nil {
			t.Error(err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access", "token_type": "Bearer", "expires_in": 3600, "id_token": signed,
		})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		s.certsHits.Add(1)
		pub := s.key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": "k1",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGoogleStub(t *testing.T, claims jwt.MapClaims) (*googleStub, *httptest.Server) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	stub := &googleStub{key: key, idClaims: claims}
	return stub, stub.server(t)
}

func newTestGoogleWith(t *testing.T, srv *httptest.Server, cb *gobreaker.CircuitBreaker) *GoogleProvider {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	endpoint := oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	g, err := newGoogleProvider(ctx, endpoint, srv.URL+"/certs", "client-id", "client-secret",
		"http://localhost/auth/google/callback", cb, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("newGoogleProvider: %v", err)
	}
	return g
}

func newTestGoogle(t *testing.T, claims jwt.MapClaims) *GoogleProvider {
	_, srv := newGoogleStub(t, claims)
	return newTestGoogleWith(t, srv, gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "google-test"}))
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            "client-id",
		"sub":            "google-123",
		"email":          "ravi@example.com",
		"email_verified": true,
		"name":           "Ravi",
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	_, srv := newGoogleStub(t, validClaims())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, err := newGoogleProvider(ctx, endpoints.Google, srv.URL+"/certs", "client-id", "secret", "http://localhost/cb",
		gobreaker.NewCircuitBreaker(gobreaker.Settings{}), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("newGoogleProvider: %v", err)
	}
	u := g.AuthURL("xyz")
	if !strings.HasPrefix(u, "https://accounts.google.com/") || !strings.Contains(u, "state=xyz") {
		t.Errorf("unexpected auth url %q", u)
	}
}

func TestGoogleProvider_Exchange(t *testing.T) {
	g := newTestGoogle(t, validClaims())

	got, err := g.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "ravi@example.com" || got.DisplayName != "Ravi" || got.Provider != domain.ProviderGoogle {
		t.Errorf("unexpected identity %+v", got)
	}
}

func TestGoogleProvider_ExchangeRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		code   string
	}{
		{name: "bad code", code: "bad-code"},
		{name: "empty code", code: ""},
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{name: "unverified email", mutate: func(c jwt.MapClaims) { c["email_verified"] = false }},
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			code := tt.code
			if code == "" && tt.mutate != nil {
				code = "good-code"
			}
			_, err := newTestGoogle(t, claims).Exchange(context.Background(), code)
			var authErr *domain.AuthError
			if !errors.As(err, &authErr) {
				t.Errorf("expected AuthError, got %v", err)
			}
		})
	}
}

func TestGoogleProvider_SigningKeysAreCached(t *testing.T) {
	stub, srv := newGoogleStub(t, validClaims())
	g := newTestGoogleWith(t, srv, gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "google-test"}))

	for i := 0; i < 3; i++ {
		if _, err := g.Exchange(context.Background(), "good-code"); err != nil {
			t.Fatalf("exchange %d: %v", i, err)
		}
	}
	if got := stub.certsHits.Load(); got != 1 {
		t.Errorf("expected the key set to be fetched once, got %d fetches", got)
	}
}

func TestBreakerTransport(t *testing.T) {
	stub, srv := newGoogleStub(t, validClaims())
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "google-test",
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	client := &http.Client{Transport: breakerTransport{base: http.DefaultTransport, cb: cb}}

	resp, err := client.Get(srv.URL + "/certs")
	if err != nil {
		t.Fatalf("closed breaker: %v", err)
	}
	resp.Body.Close()

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("upstream down") })
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}

	_, err = client.Get(srv.URL + "/certs")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if got := stub.certsHits.Load(); got != 1 {
		t.Errorf("open breaker let a request through: %d hits", got)
	}
}

func TestBreakerTransport_ServerErrorsTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "google-test",
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	client := &http.Client{Transport: breakerTransport{base: http.DefaultTransport, cb: cb}}

	for i := 0; i < 2; i++ {
		if _, err := client.Get(srv.URL); err == nil {
			t.Fatalf("request %d: expected an error for a 502", i)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected open breaker after repeated 502s, got %s", cb.State())
	}
}
