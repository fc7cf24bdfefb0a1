package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/cache"
	"github.com/reflexhq/reflex/internal/config"
	"github.com/reflexhq/reflex/internal/logger"
	"github.com/reflexhq/reflex/internal/pipeline"
)

// Server exposes the screening pipeline over HTTP
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	pipeline *pipeline.Pipeline
	cache    *cache.Manager
	router   *mux.Router
	server   *http.Server
	version  string
}

// New creates a new server instance
func New(cfg *config.Config, p *pipeline.Pipeline, cacheMgr *cache.Manager, log *logger.Logger, version string) *Server {
	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		pipeline: p,
		cache:    cacheMgr,
		router:   mux.NewRouter(),
		version:  version,
	}

	s.setupRoutes()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-ID", "X-User-Tier"},
	}).Handler(s.router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.HandleFunc("/process", s.handleProcess).Methods("POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting reflex server",
		zap.String("host", s.config.Server.Host),
		zap.Int("port", s.config.Server.Port),
		zap.String("version", s.version),
	)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping reflex server")
	return s.server.Shutdown(ctx)
}

// Handler returns the configured root handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth reports process liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady reports readiness: 503 until the shared store is
// reachable, so load balancers hold traffic while Redis is down even
// though the pipeline itself would serve degraded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.cache.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"redis":  "unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"redis":  "ok",
	})
}

// handleStats exposes cache counters
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache": s.cache.Stats(),
	})
}
