// Package web provides the HTTP server and handlers for collaborator imports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/collabimport/internal/config"
	"github.com/JonMunkholm/collabimport/internal/core"
	"github.com/JonMunkholm/collabimport/internal/store"
	mw "github.com/JonMunkholm/collabimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuditLister reads the import audit log.
type AuditLister interface {
	ListImports(ctx context.Context, q store.AuditQuery) (*store.AuditPage, error)
}

// Server is the HTTP server for the import application.
type Server struct {
	service *core.Service
	cfg     *config.Config
	audit   AuditLister
	metrics http.Handler
	router  *chi.Mux
	server  *http.Server

	limiter       *mw.RateLimiter
	uploadLimiter *mw.RateLimiter
	stop          context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithAuditLog enables GET /api/audit.
func WithAuditLog(a AuditLister) Option {
	return func(s *Server) { s.audit = a }
}

// WithMetrics serves h at the configured metrics path.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a server for service.
func NewServer(service *core.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	if cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimiter = mw.NewRateLimiter(cfg.Rate.UploadLimit, time.Minute)
		go s.limiter.Run(ctx)
		go s.uploadLimiter.Run(ctx)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/", s.handleIndex)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		// Progress streams stay open for the whole import.
		r.Get("/imports/{sessionID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			r.Use(middleware.Compress(5))

			upload := r.With()
			if s.uploadLimiter != nil {
				upload = r.With(s.uploadLimiter.Handler)
			}
			upload.Post("/imports", s.handleUpload)

			r.Get("/imports/{sessionID}", s.handleImportStatus)
			r.Get("/imports/{sessionID}/rows", s.handleImportRows)
			r.Get("/imports/{sessionID}/report.txt", s.handleTextReport)
			r.Get("/imports/{sessionID}/report.xlsx", s.handleWorkbookReport)
			r.Delete("/imports/{sessionID}", s.handleCloseImport)

			r.Get("/audit", s.handleAuditLog)
			r.Get("/status", s.handleStatus)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
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
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// htmx and its SSE extension load from unpkg
				h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
