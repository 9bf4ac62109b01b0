// Package api serves the blob store over HTTP.
//
// Routes under /api/v1 require an X-API-Key header when a key is configured;
// /metrics is left open for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/metrics"
)

// Server holds the API server state
type Server struct {
	store   IBlobStore
	config  ServerConfig
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewServer creates a new API server
func NewServer(store IBlobStore, config ServerConfig, m *metrics.Metrics, log *zap.Logger) *Server {
	if config.MaxBlobSize <= 0 {
		config.MaxBlobSize = defaultMaxBlobSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: store, config: config, metrics: m, log: log}
}

// Routes builds the router with all middleware and endpoints
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", s.metrics.Handler())

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", s.handleSwagger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/stats", s.metrics.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))

		r.Post("/inspect", s.metrics.InstrumentHandler("POST", "/api/v1/inspect", s.handleInspect))

		r.Get("/blobs", s.metrics.InstrumentHandler("GET", "/api/v1/blobs", s.handleListBlobs))
		r.Post("/blobs", s.metrics.InstrumentHandler("POST", "/api/v1/blobs", s.handlePutBlob))
		r.Get("/blobs/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/blobs/{id}", s.handleGetBlob))
		r.Get("/blobs/{id}/header", s.metrics.InstrumentHandler("GET", "/api/v1/blobs/{id}/header", s.handleGetHeader))
		r.Delete("/blobs/{id}", s.metrics.InstrumentHandler("DELETE", "/api/v1/blobs/{id}", s.handleDeleteBlob))
	})

	return r
}

// StartServer serves until ctx is cancelled, then shuts down gracefully
func StartServer(ctx context.Context, s *Server) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.startMetricsUpdater(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting shapebin REST API server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down REST API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// startMetricsUpdater refreshes store gauges every 30 seconds
func (s *Server) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	s.updateStoreStats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateStoreStats()
		}
	}
}

func (s *Server) updateStoreStats() {
	st, err := s.store.Stats()
	if err != nil {
		s.log.Warn("failed to collect store stats", zap.Error(err))
		return
	}
	s.metrics.UpdateStoreStats(st.Blobs, st.Bytes)
}
