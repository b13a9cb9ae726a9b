// Package api serves the enrichment operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Server represents the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
	drain      func(context.Context) error
}

// NewServer creates a Server exposing the enrichment routes under /api/v1. drain, if
// set, is called on Shutdown after the listener stops, to wait for background runs.
func NewServer(addr string, svc Enrichment, dispatcher Dispatcher, drain func(context.Context) error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(Logging(logger))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Mount("/api/v1", Routes(svc, dispatcher, logger))

	return &Server{
		router: router,
		addr:   addr,
		logger: logger,
		drain:  drain,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, then waits for background runs.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		s.logger.Info("shutting down HTTP server")
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.drain != nil {
		errs = append(errs, s.drain(ctx))
	}
	return errors.Join(errs...)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}
