// Package http serves the coinwise JSON API. Every /api route runs against
// the ledger.Backend chosen for the request's session.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coinwise/internal/backend"
	"coinwise/internal/cache"
	"coinwise/internal/core"
	"coinwise/internal/ledger"
	"coinwise/internal/log"
	"coinwise/internal/middleware/ratelimit"
	"coinwise/internal/middleware/security"
	"coinwise/internal/middleware/trace"
	"coinwise/internal/services"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Factory      backend.Factory
	Auth         ledger.Authenticator
	Guests       Pinger
	Backend      Pinger
	Transactions *services.TransactionService
	Categories   *services.CategoryService
	Insights     *services.InsightService

	// Sessions caches the user each auth token resolved to.
	Sessions cache.Cache[core.User]
	Caches   *cache.Manager

	CookieSecure       bool
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
}

type Server struct {
	http.Server
	deps        Deps
	logger      *log.Logger
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures the middleware stack and routes, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	detector, err := security.NewDetector(deps.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	s := &Server{
		deps:     deps,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		detector: detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(detector.ExtractClientIP, deps.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware(deps.Logger))
	r.Use(s.rateLimiter.Middleware(detector.ExtractClientIP, ratelimit.MutatingOnly, s.rateLimited))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Put("/transactions/{id}", s.handleUpdateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Get("/category-groups", s.handleListCategoryGroups)

			r.Get("/account/balance", s.handleGetBalance)
			r.Put("/account/balance/{id}", s.handleUpdateBalance)

			r.Post("/ai-insights", s.handleGenerateInsights)

			r.Post("/chat", s.handleChat)
			r.Get("/chat/history", s.handleChatHistory)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request, retry time.Duration) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		if s.deps.Caches != nil {
			s.deps.Caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady fails only when the guest store is unreachable. The backend is
// reported but a guest can keep working without it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}
	if s.deps.Guests != nil {
		checks["guest_store"] = "ok"
		if err := s.deps.Guests.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Guest store not ready", log.FieldError, err)
			checks["guest_store"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.Backend != nil {
		checks["backend"] = "ok"
		if err := s.deps.Backend.Ping(ctx); err != nil {
			checks["backend"] = "unreachable"
		}
	}

	body := map[string]any{
		"status":     "ready",
		"checks":     checks,
		"rate_limit": s.rateLimiter.GetMetrics(),
		"requests":   s.tracer.GetMetrics(),
		"security":   s.detector.GetMetrics(),
	}
	if s.deps.Sessions != nil {
		body["session_cache_size"] = s.deps.Sessions.Size()
	}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	writeJSON(w, status, body)
}
