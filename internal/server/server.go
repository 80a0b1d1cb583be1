package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/caioniehues/clibridge/api"
	"github.com/caioniehues/clibridge/internal/config"
	"github.com/caioniehues/clibridge/internal/journal"
	"github.com/caioniehues/clibridge/internal/server/handlers"
	"github.com/caioniehues/clibridge/internal/server/middleware"
)

// Server is the HTTP server.
type Server struct {
	httpServer *http.Server
	health     *handlers.HealthHandler
}

// New creates and configures the HTTP server with all routes and middleware.
// jrnl may be nil when journaling is disabled.
func New(cfg *config.Config, svc handlers.SessionService, jrnl *journal.Journal, version string) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimw.Recoverer)

	// Health and metrics endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(svc, version)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	sessionHandler := handlers.NewSessionHandler(svc, cfg.CLI)
	journalHandler := handlers.NewJournalHandler(jrnl)
	docsHandler := handlers.NewDocsHandler(api.OpenAPISpec)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.AuthToken != "" {
			r.Use(middleware.BearerAuth(cfg.Server.AuthToken))
		}

		r.Get("/availability", sessionHandler.Availability)
		r.Get("/metrics/sessions", sessionHandler.SessionMetrics)
		r.Get("/sessions/recent", journalHandler.Recent)
		r.Post("/sessions/cancel", sessionHandler.Cancel)

		r.Group(func(r chi.Router) {
			if cfg.RateLimit.Enabled {
				limiter := middleware.NewRateLimiter(cfg.RateLimit.SessionsPerMinute, time.Minute)
				r.Use(limiter.Middleware())
			}
			r.Post("/sessions", sessionHandler.Run)
			r.Post("/sessions/stream", sessionHandler.Stream)
		})

		r.Get("/openapi.yaml", docsHandler.OpenAPISpec)
		r.Get("/docs", docsHandler.SwaggerUI)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: otelhttp.NewHandler(r, "clibridge"),
		// WriteTimeout stays 0: session endpoints stream for up to the
		// configured session ceiling; the session deadline bounds them.
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		health:     healthHandler,
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}
