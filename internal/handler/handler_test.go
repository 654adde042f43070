package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/loyalbridge/admin/internal/config"
	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/server/middleware"
	"github.com/loyalbridge/admin/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests-0123456789"
	testPassword  = "HandlerPassw0rd!"
)

// captureNotifier records issued codes so tests can complete 2FA.
type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *captureNotifier) DeliverOTP(_ context.Context, admin *model.Admin, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[admin.Email] = code
	return nil
}

func (n *captureNotifier) code(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *config.Store
	authSvc  *service.AuthService
	hasher   service.PasswordHasher
	notifier *captureNotifier
	router   chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory credential
// store and a router with the auth gate mounted. Admins with FINANCE_TEAM
// role must pass the OTP step.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:     testJWTSecret,
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	notifier := &captureNotifier{codes: map[string]string{}}
	authSvc := service.NewAuthService(store, tokens, service.AuthOptions{
		Hasher:    hasher,
		TwoFactor: service.RequireTwoFactorForRoles(model.RoleFinanceTeam),
		Notifier:  notifier,
		Logger:    logger,
	})

	authH := NewAuthHandler(authSvc, "loyalbridge.io", logger)
	adminH := NewAdminHandler(store, hasher, logger)
	docsH := NewDocsHandler("http://localhost:8080")

	r := chi.NewRouter()
	r.Use(middleware.Gate(authSvc, logger, nil))
	r.Get("/api-docs", docsH.ServeSpec)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authH.Login)
		r.Post("/verify-2fa", authH.VerifyTwoFactor)
		r.Post("/refresh", authH.Refresh)
		r.Post("/logout", authH.Logout)
		r.Get("/health", authH.Health)
		r.With(middleware.RequireAuthenticated()).Get("/me", authH.Me)
	})
	r.Route("/api/admins", func(r chi.Router) {
		r.Use(middleware.RequireRole(model.RoleSuperAdmin))
		r.Get("/", adminH.ListAdmins)
		r.Post("/", adminH.CreateAdmin)
		r.Patch("/{id}/status", adminH.SetStatus)
	})

	return &testEnv{
		store:    store,
		authSvc:  authSvc,
		hasher:   hasher,
		notifier: notifier,
		router:   r,
	}
}

// seedAdmin creates an active admin with testPassword and returns it.
func (e *testEnv) seedAdmin(t *testing.T, email string, role model.AdminRole) *model.Admin {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	admin := &model.Admin{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    "Test",
		LastName:     "Admin",
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// login runs the password step and returns the issued tokens.
func (e *testEnv) login(t *testing.T, email string) model.LoginResponse {
	t.Helper()
	rr := e.do(t, "POST", "/api/auth/login", "", toJSON(t, map[string]string{
		"email": email, "password": testPassword,
	}))
	assertStatus(t, rr, 200)
	var resp model.LoginResponse
	decodeJSON(t, rr, &resp)
	return resp
}

// do executes an HTTP request against the test router and returns the
// recorder. A non-empty token is sent as a bearer credential.
func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.1:1234"
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	return resp.Error.Message
}
