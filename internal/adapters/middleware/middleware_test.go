package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/test/mocks"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(string(s.Role)))
}

func newGate() (*Gate, *mocks.MockSessionResolver) {
	resolver := mocks.NewMockSessionResolver()
	resolver.Add("citizen-token", "citizen-1", domain.RoleCitizen)
	resolver.Add("cleaner-token", "cleaner-1", domain.RoleCleaner)
	resolver.Add("admin-token", "admin-1", domain.RoleAdmin)
	resolver.Add("roleless-token", "ghost-1", "")
	return NewGate(resolver, zap.NewNop().Sugar()), resolver
}

func TestRequireRole(t *testing.T) {
	gate, _ := newGate()
	h := gate.RequireRole([]domain.Role{domain.RoleAdmin}, "/dashboard", okHandler)

	tests := []struct {
		name         string
		header       string
		cookie       string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{"unauthenticated", "", "", http.StatusSeeOther, "/login", ""},
		{"invalid token", "Bearer nope", "", http.StatusSeeOther, "/login", ""},
		{"malformed header", "Token admin-token", "", http.StatusSeeOther, "/login", ""},
		{"unresolved role", "Bearer roleless-token", "", http.StatusSeeOther, "/login", ""},
		{"wrong role", "Bearer citizen-token", "", http.StatusSeeOther, "/dashboard", ""},
		{"permitted via header", "Bearer admin-token", "", http.StatusOK, "", "admin"},
		{"permitted via cookie", "", "admin-token", http.StatusOK, "", "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantLocation != "" && rec.Header().Get("Location") != tt.wantLocation {
				t.Errorf("expected redirect to %s, got %s", tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireRole_DefaultFallbackIsLogin(t *testing.T) {
	gate, _ := newGate()
	h := gate.RequireRole([]domain.Role{domain.RoleAdmin}, "", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	req.Header.Set("Authorization", "Bearer cleaner-token")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != LoginPath {
		t.Errorf("expected 303 to %s, got %d %s", LoginPath, rec.Code, rec.Header().Get("Location"))
	}
}

func TestGate_PendingWhileLoading(t *testing.T) {
	gate, resolver := newGate()
	resolver.IsLoading = true

	for name, h := range map[string]http.HandlerFunc{
		"auth": gate.RequireAuth(okHandler),
		"role": gate.RequireRole([]domain.Role{domain.RoleAdmin}, "", okHandler),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.Header.Set("Authorization", "Bearer admin-token")
			rec := httptest.NewRecorder()
			h(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"pending"`) {
				t.Errorf("expected pending body, got %s", rec.Body.String())
			}
		})
	}

	if resolver.Calls != 0 {
		t.Errorf("tokens must not be resolved while loading, got %d calls", resolver.Calls)
	}
}

func TestRequireAuth_AnyRole(t *testing.T) {
	gate, _ := newGate()
	h := gate.RequireAuth(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer roleless-token")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("authenticated caller without role should pass the auth guard, got %d", rec.Code)
	}
}

func TestOptional(t *testing.T) {
	gate, _ := newGate()
	var seen bool
	h := gate.Optional(func(w http.ResponseWriter, r *http.Request) {
		_, seen = SessionFromContext(r.Context())
	})

	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if seen {
		t.Error("anonymous request should carry no session")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer citizen-token")
	h(httptest.NewRecorder(), req)
	if !seen {
		t.Error("expected session for signed-in request")
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://app.test"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/reports", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://app.test" {
		t.Errorf("expected allowed origin header, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Error("PATCH must be allowed for status updates")
	}

	req = httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin must not be allowed")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected the request to pass through, got %d", rec.Code)
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{[]string{"*"}, "http://any.test", true},
		{[]string{"http://app.test"}, "HTTP://APP.TEST", true},
		{[]string{"http://app.test"}, "http://other.test", false},
		{nil, "http://app.test", false},
	}
	for _, tt := range tests {
		if got := OriginAllowed(tt.allowed, tt.origin); got != tt.want {
			t.Errorf("OriginAllowed(%v, %q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, nil)
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request within the burst window should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients have their own bucket")
	}

	now = now.Add(30 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Error("a token should be refilled after 30s at 2/min")
	}
}

func TestRateLimiter_Limit(t *testing.T) {
	rl := NewRateLimiter(1, nil)
	h := rl.Limit(zap.NewNop().Sugar(), func(w http.ResponseWriter, r *http.Request) {})

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	h(first, req)

	second := httptest.NewRecorder()
	h(second, req)

	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Errorf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}
}

func TestRateLimiter_SpoofedForwardedForSharesBucket(t *testing.T) {
	rl := NewRateLimiter(1, nil)
	h := rl.Limit(zap.NewNop().Sugar(), func(w http.ResponseWriter, r *http.Request) {})

	codes := make([]int, 0, 3)
	for _, fwd := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.50:4000"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("rotating X-Forwarded-For from one peer: got %v, want %v", codes, want)
		}
	}
}

func TestRateLimiter_TrustedProxyForwardsClients(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}
	rl := NewRateLimiter(1, proxies)
	h := rl.Limit(zap.NewNop().Sugar(), func(w http.ResponseWriter, r *http.Request) {})

	for _, fwd := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %s behind the proxy should have its own bucket, got %d", fwd, rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.1, 172.16.0.0/12")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		remote  string
		fwd     []string
		proxies TrustedProxies
		want    string
	}{
		{name: "no header", remote: "192.0.2.1:1234", proxies: proxies, want: "192.0.2.1"},
		{name: "untrusted peer ignores header", remote: "192.0.2.1:1234", fwd: []string{"203.0.113.7"}, proxies: proxies, want: "192.0.2.1"},
		{name: "no proxies configured", remote: "192.0.2.1:1234", fwd: []string{"203.0.113.7"}, want: "192.0.2.1"},
		{name: "trusted peer", remote: "10.0.0.1:1234", fwd: []string{"203.0.113.7"}, proxies: proxies, want: "203.0.113.7"},
		{name: "spoofed leftmost hop", remote: "10.0.0.1:1234", fwd: []string{"1.1.1.1, 203.0.113.7"}, proxies: proxies, want: "203.0.113.7"},
		{name: "proxy chain", remote: "10.0.0.1:1234", fwd: []string{"203.0.113.7, 172.20.0.4"}, proxies: proxies, want: "203.0.113.7"},
		{name: "repeated headers", remote: "10.0.0.1:1234", fwd: []string{"203.0.113.7", "172.20.0.4"}, proxies: proxies, want: "203.0.113.7"},
		{name: "garbage hop", remote: "10.0.0.1:1234", fwd: []string{"not-an-ip"}, proxies: proxies, want: "10.0.0.1"},
		{name: "only proxies", remote: "10.0.0.1:1234", fwd: []string{"172.20.0.4"}, proxies: proxies, want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.fwd {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := ClientIP(req, tt.proxies); got != tt.want {
				t.Errorf("ClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies(" 10.0.0.1 ,, 192.168.0.0/16,::1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proxies) != 3 {
		t.Fatalf("expected 3 entries, got %v", proxies)
	}
	for _, ip := range []string{"10.0.0.1", "192.168.4.4", "::1", "::ffff:10.0.0.1"} {
		if !proxies.Contains(ip) {
			t.Errorf("expected %s to be trusted", ip)
		}
	}
	if proxies.Contains("10.0.0.2") {
		t.Error("10.0.0.2 is not in the list")
	}

	if _, err := ParseTrustedProxies("10.0.0.0/33"); err == nil {
		t.Error("expected an error for a bad prefix")
	}
	if _, err := ParseTrustedProxies("proxy.local"); err == nil {
		t.Error("expected an error for a hostname")
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("unexpected order %v", order)
	}
}
