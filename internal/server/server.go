package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/loyalbridge/admin/internal/config"
	"github.com/loyalbridge/admin/internal/handler"
	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/server/middleware"
	"github.com/loyalbridge/admin/internal/service"
	"github.com/loyalbridge/admin/internal/telemetry"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// LoginRatePerMinute caps login and verify-2fa requests per client IP.
	// Zero disables the limit.
	LoginRatePerMinute int
	// EmailDomain restricts login emails, e.g. "loyalbridge.io".
	EmailDomain string
	// PublicBaseURL is advertised in the OpenAPI document.
	PublicBaseURL string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ShutdownTimeout:    30 * time.Second,
		CORSOrigins:        []string{"http://localhost:3000", "http://localhost:3001", "http://127.0.0.1:3000", "http://127.0.0.1:3001"},
		LoginRatePerMinute: 20,
		EmailDomain:        "loyalbridge.io",
	}
}

// CheckFunc reports whether a dependency is ready.
type CheckFunc func(ctx context.Context) error

// Server is the top-level HTTP server of the admin API. It owns the Chi
// router, the credential store and the authentication service.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	authSvc    *service.AuthService
	metrics    *telemetry.Metrics
	httpServer *http.Server
	logger     *slog.Logger

	mu            sync.Mutex
	checks        map[string]CheckFunc
	shutdownHooks []func(context.Context)
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
// metrics may be nil.
func New(cfg Config, store *config.Store, authSvc *service.AuthService, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		authSvc: authSvc,
		metrics: metrics,
		logger:  logger,
		checks:  map[string]CheckFunc{"store": store.Ping},
	}
	s.setupRouter()
	return s
}

// AddReadinessCheck registers an extra dependency probed by /readyz.
func (s *Server) AddReadinessCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	s.checks[name] = fn
	s.mu.Unlock()
}

// OnShutdown registers fn to run after the HTTP server has drained.
func (s *Server) OnShutdown(fn func(context.Context)) {
	s.mu.Lock()
	s.shutdownHooks = append(s.shutdownHooks, fn)
	s.mu.Unlock()
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	r.Use(chimw.Compress(5))
	r.Use(middleware.Gate(s.authSvc, s.logger, middleware.DefaultPublicRoutes))

	// --- Probes, metrics and docs (public) ---
	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/api-docs", handler.NewDocsHandler(s.cfg.PublicBaseURL).ServeSpec)

	authHandler := handler.NewAuthHandler(s.authSvc, s.cfg.EmailDomain, s.logger)
	adminHandler := handler.NewAdminHandler(s.store, s.authSvc.Hasher(), s.logger)

	// --- Authentication ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.LoginRateLimit(s.cfg.LoginRatePerMinute))
			r.Post("/login", authHandler.Login)
			r.Post("/verify-2fa", authHandler.VerifyTwoFactor)
		})
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Get("/health", authHandler.Health)
		r.With(middleware.RequireAuthenticated()).Get("/me", authHandler.Me)
	})

	// --- Administrator management ---
	r.Route("/api/admins", func(r chi.Router) {
		r.Use(middleware.RequireRole(model.RoleSuperAdmin))
		r.Get("/", adminHandler.ListAdmins)
		r.Post("/", adminHandler.CreateAdmin)
		r.Patch("/{id}/status", adminHandler.SetStatus)
	})

	s.router = r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "loyalbridge-admin",
		"docs":    "/api-docs",
	})
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the credential store
// and any registered dependencies answer, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.Unlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = "degraded"
		} else {
			results[name] = "ok"
		}
	}

	httpStatus := http.StatusOK
	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": results,
	})
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// a SIGINT or SIGTERM is received. It then drains in-flight requests and runs
// the shutdown hooks.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.mu.Lock()
	hooks := append([]func(context.Context){}, s.shutdownHooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(shutdownCtx)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
