// Package api wires the HTTP surface: the ad-hoc client sync endpoint,
// the public unsubscribe endpoint, health and metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/httputil"
	"github.com/menatics/andromeda/pkg/monitor"
	"github.com/menatics/andromeda/pkg/observability"
)

// Syncer performs the ad-hoc single-client sync
type Syncer interface {
	SyncClient(ctx context.Context, id int64) (*monitor.SyncResult, error)
}

// Server is the Andromeda HTTP API server
type Server struct {
	router  *mux.Router
	server  *http.Server
	repo    clients.Repository
	syncer  Syncer
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates the API server and registers all routes
func NewServer(cfg config.ServerConfig, repo clients.Repository, syncer Syncer, logger *observability.Logger, metrics *observability.Metrics, registry *prometheus.Registry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		repo:    repo,
		syncer:  syncer,
		logger:  logger,
		metrics: metrics,
	}
	s.setupRoutes(registry)

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	s.handle("/api/v1/clients/{id}/sync", s.handleSync).Methods(http.MethodPost)
	s.handle("/unsubscribe/{id}", s.handleUnsubscribe).Methods(http.MethodGet)
	s.handle("/healthz", s.handleHealth).Methods(http.MethodGet)

	if registry != nil {
		s.router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}
}

// handle registers a route wrapped with recovery, logging and metrics
func (s *Server) handle(route string, handler http.HandlerFunc) *mux.Route {
	wrapped := httputil.Chain(
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger, s.metrics, route),
	)(handler)
	return s.router.Handle(route, wrapped)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("api server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
