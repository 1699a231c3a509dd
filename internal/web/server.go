// Package web exposes the import pipeline and the ticketing sync as a JSON
// API for the event back office.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/eventsync"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/web/middleware"
)

// Importer is the file import pipeline. *core.Service implements it.
type Importer interface {
	Preview(ctx context.Context, eventID uuid.UUID, src core.Source, opts core.PreviewOptions) (*core.PreviewResult, error)
	Commit(ctx context.Context, eventID uuid.UUID, src core.Source, opts core.CommitOptions) (*core.CommitResult, error)
	ListImportLogs(ctx context.Context, eventID uuid.UUID) ([]core.ImportLog, error)
	GetImportLog(ctx context.Context, id uuid.UUID) (core.ImportLog, error)
	Limiter() *core.ImportLimiter
}

// Syncer runs ticketing syncs. *eventsync.Orchestrator implements it.
type Syncer interface {
	Preview(ctx context.Context, eventID uuid.UUID, opts eventsync.Options) (*core.PreviewResult, error)
	Import(ctx context.Context, eventID uuid.UUID, opts eventsync.Options) (*core.CommitResult, error)
	RemoteEvents(ctx context.Context) ([]ticketing.Event, error)
	RemoteSessions(ctx context.Context, eventRef string) ([]ticketing.Session, error)
	SaveCredentials(ctx context.Context, creds ticketing.Credentials) error
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP server of the back office API.
type Server struct {
	cfg     *config.Config
	imports Importer
	sync    Syncer
	health  map[string]HealthCheck
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. checks are run by the health endpoint, keyed
// by dependency name.
func NewServer(cfg *config.Config, imports Importer, sync Syncer, checks map[string]HealthCheck) *Server {
	s := &Server{
		cfg:     cfg,
		imports: imports,
		sync:    sync,
		health:  checks,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	if len(s.cfg.Server.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Operator"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))
		r.Use(middleware.Operator)

		r.Get("/imports/status", s.handleImportStatus)

		// Import endpoints are heavier and get their own budget.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute).middleware)
			}
			r.Post("/events/{eventID}/import/preview", s.handlePreview)
			r.Post("/events/{eventID}/import", s.handleImport)
			r.Get("/events/{eventID}/sync/preview", s.handleSyncPreview)
			r.Post("/events/{eventID}/sync", s.handleSync)
		})

		r.Get("/events/{eventID}/import-logs", s.handleListImportLogs)
		r.Get("/import-logs/{logID}", s.handleGetImportLog)

		r.Get("/ticketing/events", s.handleRemoteEvents)
		r.Get("/ticketing/events/{ref}/sessions", s.handleRemoteSessions)
		r.Put("/ticketing/credentials", s.handleSaveCredentials)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
