// Package api provides the HTTP surface of the scoring service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/upishield/shikra/internal/domain"
	"github.com/upishield/shikra/internal/pipeline"
	"github.com/upishield/shikra/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, catalog *rules.Catalog, processor *pipeline.Processor, version string) *Server {
	handler := NewHandler(repo, cache, bus, catalog, processor, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Transaction scoring
	router.Post("/transactions", handler.ScoreTransaction)
	router.Post("/transactions/async", handler.IngestTransaction)
	router.Get("/transactions/{id}", handler.GetTransaction)
	router.Get("/transactions/{id}/events", handler.ListTransactionEvents)

	// Batch scoring
	router.Post("/csv-upload", handler.CSVUpload)

	// Alert management
	router.Get("/alerts", handler.ListAlerts)
	router.Get("/alerts/{id}", handler.GetAlert)
	router.Post("/alerts/{id}/status", handler.UpdateAlertStatus)

	// Pattern management
	router.Get("/patterns", handler.ListPatterns)
	router.Post("/patterns", handler.CreatePattern)
	router.Post("/patterns/reload", handler.ReloadPatterns)

	// Blacklist management
	router.Get("/blacklist", handler.ListBlacklist)
	router.Post("/blacklist", handler.ReportBlacklist)

	// Profiles and stats
	router.Get("/profiles/{upi}", handler.GetProfile)
	router.Get("/stats/fraud", handler.FraudStats)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
