package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/service"
)

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if id := rr.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("expected UUID-length request ID, got %q", id)
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, got)
	}
}

func TestRequestIDReplacesUnusableClientID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, bad := range []string{strings.Repeat("x", 200), "has space"} {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", bad)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if got := rr.Header().Get("X-Request-ID"); got == bad || len(got) != 36 {
			t.Errorf("client ID %q should be replaced, got %q", bad, got)
		}
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Gate tests
// ---------------------------------------------------------------------------

type fakeAuthenticator struct {
	principals map[string]*service.Principal
	calls      int
	panicOn    string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*service.Principal, error) {
	f.calls++
	if token == f.panicOn {
		panic("boom")
	}
	if p, ok := f.principals[token]; ok {
		return p, nil
	}
	return nil, service.ErrInvalidToken
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeAuth() *fakeAuthenticator {
	return &fakeAuthenticator{
		principals: map[string]*service.Principal{
			"good-token": {AdminID: 7, Email: "finance@loyalbridge.io", Role: model.RoleFinanceTeam, Authority: "ROLE_FINANCE_TEAM"},
		},
		panicOn: "explode",
	}
}

// gated runs a request through Gate and returns the principal the inner
// handler saw.
func gated(t *testing.T, auth Authenticator, method, path, header string) *service.Principal {
	t.Helper()
	var seen *service.Principal
	called := false
	h := Gate(auth, discardLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = GetPrincipal(r.Context())
	}))
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatalf("%s %s: gate must never reject", method, path)
	}
	return seen
}

func TestGateAttachesPrincipal(t *testing.T) {
	auth := newFakeAuth()
	p := gated(t, auth, "GET", "/api/auth/me", "Bearer good-token")
	if p == nil || p.AdminID != 7 || p.Authority != "ROLE_FINANCE_TEAM" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestGateLeavesBadTokensUnauthenticated(t *testing.T) {
	auth := newFakeAuth()
	for _, h := range []string{"", "Bearer bad-token", "Basic Zm9vOmJhcg==", "Bearer explode"} {
		if p := gated(t, auth, "GET", "/api/auth/me", h); p != nil {
			t.Errorf("header %q: expected no principal, got %+v", h, p)
		}
	}
}

func TestGateSkipsPublicRoutes(t *testing.T) {
	auth := newFakeAuth()
	for _, path := range []string{"/api/auth/login", "/api/auth/refresh", "/healthz", "/swagger-ui/index.html", "/"} {
		if p := gated(t, auth, "GET", path, "Bearer good-token"); p != nil {
			t.Errorf("%s: public route should not resolve tokens", path)
		}
	}
	if auth.calls != 0 {
		t.Errorf("Authenticate called %d times on public routes", auth.calls)
	}
}

func TestGateKeepsEstablishedPrincipal(t *testing.T) {
	auth := newFakeAuth()
	existing := &service.Principal{AdminID: 3, Email: "support@loyalbridge.io", Role: model.RoleSupportStaff}

	var seen *service.Principal
	h := Gate(auth, discardLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipal(r.Context())
	}))
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	req = req.WithContext(service.WithPrincipal(req.Context(), existing))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != existing {
		t.Errorf("expected the established principal, got %+v", seen)
	}
	if auth.calls != 0 {
		t.Errorf("Authenticate called %d times with an identity already set", auth.calls)
	}
}

func TestPublicRoutesMatch(t *testing.T) {
	tests := []struct {
		method, path string
		want         bool
	}{
		{"POST", "/api/auth/login", true},
		{"POST", "/api/auth/verify-2fa", true},
		{"GET", "/", true},
		{"POST", "/", false},
		{"GET", "/api/auth/me", false},
		{"POST", "/api/auth/logout", false},
		{"GET", "/api/auth/login/extra", false},
		{"GET", "/swagger-ui/", true},
		{"GET", "/api/admins", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.path, nil)
		if got := DefaultPublicRoutes.Match(r); got != tt.want {
			t.Errorf("Match(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// RequireRole tests
// ---------------------------------------------------------------------------

func roleRequest(p *service.Principal) *http.Request {
	req := httptest.NewRequest("GET", "/api/admins", nil)
	if p != nil {
		req = req.WithContext(service.WithPrincipal(req.Context(), p))
	}
	return req
}

func TestRequireRole(t *testing.T) {
	superAdmin := &service.Principal{AdminID: 1, Role: model.RoleSuperAdmin}
	support := &service.Principal{AdminID: 2, Role: model.RoleSupportStaff}

	tests := []struct {
		name  string
		p     *service.Principal
		roles []model.AdminRole
		want  int
	}{
		{"unauthenticated", nil, []model.AdminRole{model.RoleSuperAdmin}, http.StatusUnauthorized},
		{"wrong role", support, []model.AdminRole{model.RoleSuperAdmin}, http.StatusForbidden},
		{"right role", superAdmin, []model.AdminRole{model.RoleSuperAdmin}, http.StatusOK},
		{"one of several", support, []model.AdminRole{model.RoleFinanceTeam, model.RoleSupportStaff}, http.StatusOK},
		{"any authenticated", support, nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(tt.roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, roleRequest(tt.p))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRequireAuthenticatedErrorEnvelope(t *testing.T) {
	h := RequireAuthenticated()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not run")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, roleRequest(nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	var body model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != 401 || body.Error.Message == "" {
		t.Errorf("unexpected envelope: %+v", body)
	}
}

// ---------------------------------------------------------------------------
// Rate limit tests
// ---------------------------------------------------------------------------

func TestLoginRateLimit(t *testing.T) {
	h := LoginRateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestLoginRateLimitDisabled(t *testing.T) {
	h := LoginRateLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/auth/login", nil))
		if rr.Code != 200 {
			t.Fatalf("request %d: status %d", i, rr.Code)
		}
	}
}
