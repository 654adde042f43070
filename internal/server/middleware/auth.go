package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/service"
)

// Authenticator resolves a bearer access token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Principal, error)
}

// PublicRoutes lists paths that skip token processing entirely. Paths ending
// in "/" match as prefixes; everything else must match exactly. The root
// path "/" is public for GET only.
type PublicRoutes []string

// DefaultPublicRoutes are the unauthenticated endpoints of the admin API.
var DefaultPublicRoutes = PublicRoutes{
	"/api/auth/login",
	"/api/auth/verify-2fa",
	"/api/auth/refresh",
	"/api/auth/register",
	"/api/auth/health",
	"/healthz",
	"/readyz",
	"/metrics",
	"/api-docs",
	"/api-docs/",
	"/swagger-ui/",
}

// Match reports whether r targets a public route.
func (p PublicRoutes) Match(r *http.Request) bool {
	path := r.URL.Path
	if path == "/" {
		return r.Method == http.MethodGet
	}
	for _, route := range p {
		if route == path {
			return true
		}
		if strings.HasSuffix(route, "/") && route != "/" && strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

// Gate attaches the authenticated principal to the request context when a
// valid bearer access token is present. It never rejects: missing, invalid,
// expired or revoked tokens leave the request unauthenticated and access
// decisions are left to RequireAuthenticated and RequireRole. A panic while
// resolving the token is logged and treated the same way. A principal
// already on the context is kept as is.
func Gate(auth Authenticator, logger *slog.Logger, public PublicRoutes) func(http.Handler) http.Handler {
	if public == nil {
		public = DefaultPublicRoutes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.Match(r) {
				next.ServeHTTP(w, r)
				return
			}
			if service.PrincipalFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := service.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if p := resolve(r, auth, logger, token); p != nil {
				r = r.WithContext(service.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolve(r *http.Request, auth Authenticator, logger *slog.Logger, token string) (p *service.Principal) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(r.Context(), "token authentication panicked",
				"panic", rec, "path", r.URL.Path, "request_id", GetRequestID(r.Context()))
			p = nil
		}
	}()

	p, err := auth.Authenticate(r.Context(), token)
	if err != nil {
		level := slog.LevelDebug
		if !errors.Is(err, service.ErrTokenExpired) && !errors.Is(err, service.ErrInvalidToken) {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "bearer token rejected",
			"reason", err.Error(), "path", r.URL.Path, "request_id", GetRequestID(r.Context()))
		return nil
	}
	return p
}

// RequireAuthenticated rejects requests without a principal with 401.
func RequireAuthenticated() func(http.Handler) http.Handler {
	return RequireRole()
}

// RequireRole rejects unauthenticated requests with 401 and requests whose
// principal holds none of roles with 403. With no roles, any authenticated
// admin passes.
func RequireRole(roles ...model.AdminRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.HasAnyRole(roles...) {
				writeAuthError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *service.Principal {
	return service.PrincipalFromContext(ctx)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
