// Package server exposes the marketplace over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Maicon-MK/integra--o-blockchain/internal/server/handler"
	"github.com/Maicon-MK/integra--o-blockchain/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Watches     *handler.WatchHandler
	Escrows     *handler.EscrowHandler
	Evaluations *handler.EvaluationHandler
	Settlement  *handler.SettlementHandler
}

// Server is the HTTP API server for the marketplace.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth).
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Watch registry and marketplace.
	mux.HandleFunc("POST /api/watches", handlers.Watches.Register)
	mux.HandleFunc("GET /api/watches/{id}", handlers.Watches.Get)
	mux.HandleFunc("POST /api/watches/{id}/list", handlers.Watches.List)
	mux.HandleFunc("POST /api/watches/{id}/delist", handlers.Watches.Delist)
	mux.HandleFunc("GET /api/watches/{id}/history", handlers.Watches.History)
	mux.HandleFunc("GET /api/watches/{id}/escrow", handlers.Escrows.ActiveForWatch)
	mux.HandleFunc("GET /api/marketplace", handlers.Watches.Marketplace)

	// Escrow contracts.
	mux.HandleFunc("POST /api/escrows", handlers.Escrows.Open)
	mux.HandleFunc("GET /api/escrows/{id}", handlers.Escrows.Get)
	mux.HandleFunc("POST /api/escrows/{id}/evaluation", handlers.Escrows.BeginEvaluation)
	mux.HandleFunc("POST /api/escrows/{id}/resolve", handlers.Escrows.Resolve)
	mux.HandleFunc("POST /api/escrows/{id}/expire", handlers.Escrows.Expire)

	// Evaluations.
	mux.HandleFunc("GET /api/evaluations/{id}", handlers.Evaluations.Get)
	mux.HandleFunc("POST /api/evaluations/{id}/complete", handlers.Evaluations.Complete)

	// Settlement records.
	mux.HandleFunc("GET /api/escrows/{id}/commissions", handlers.Settlement.Commissions)
	mux.HandleFunc("GET /api/earnings/{beneficiary}", handlers.Settlement.Earnings)

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
