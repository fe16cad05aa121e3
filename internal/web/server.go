// Package web provides the HTTP trigger server for import runs.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/qbank/internal/config"
	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/web/middleware"
)

// MaxUploadSize is the fallback upload limit when no max file size is configured.
const MaxUploadSize = 100 * 1024 * 1024

// Server is the HTTP server that triggers and reports import runs.
type Server struct {
	importer  *core.Importer
	store     core.Store
	limiter   *core.RunLimiter
	cfg       config.ServerConfig
	maxUpload int64
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a server running imports through importer. Runs are
// serialized: one active run, the next request waits RunWaitTime for it.
func NewServer(cfg config.ServerConfig, importer *core.Importer, store core.Store, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = MaxUploadSize
	}
	s := &Server{
		importer:  importer,
		store:     store,
		limiter:   core.NewRunLimiter(1, cfg.RunWaitTime),
		cfg:       cfg,
		maxUpload: maxUpload,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:        cfg.Addr(),
		Handler:     s.router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.APIKeys))

		r.Get("/records/count", s.handleCount)
		r.Get("/imports/status", s.handleRunStatus)
		r.Post("/imports", s.handleImport)
		r.Post("/imports/upload", s.handleUpload)
	})
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after Shutdown, also when Shutdown ran first.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for the active run to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
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
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
