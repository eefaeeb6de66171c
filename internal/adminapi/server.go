// Copyright 2025 James Ross
package adminapi

import (
	"context"
	"net/http"

	"github.com/danhajduk/synthiacore-scheduler/internal/config"
	"github.com/danhajduk/synthiacore-scheduler/internal/history"
	"github.com/danhajduk/synthiacore-scheduler/internal/metricsprovider"
	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the External Adapter: the HTTP surface workers and addons use
// to submit jobs, request leases, heartbeat, and complete them.
type Server struct {
	cfg        *config.Config
	handler    *Handler
	apiMetrics *metricsprovider.APICollector
	logger     *zap.Logger
	server     *http.Server
}

func NewServer(cfg *config.Config, engine *scheduler.Engine, hist *history.SQLiteSink, apiMetrics *metricsprovider.APICollector, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		handler:    NewHandler(engine, hist),
		apiMetrics: apiMetrics,
		logger:     logger,
	}
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Adapter.ListenAddr,
		Handler:      s.applyMiddleware(s.routes()),
		ReadTimeout:  s.cfg.Adapter.ReadTimeout,
		WriteTimeout: s.cfg.Adapter.WriteTimeout,
	}
	s.logger.Info("starting external adapter", zap.String("addr", s.cfg.Adapter.ListenAddr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/jobs", s.handler.Submit).Methods(http.MethodPost)
	api.HandleFunc("/leases", s.handler.RequestLease).Methods(http.MethodPost)
	api.HandleFunc("/leases/{lease_id}/heartbeat", s.handler.Heartbeat).Methods(http.MethodPost)
	api.HandleFunc("/leases/{lease_id}/complete", s.handler.Complete).Methods(http.MethodPost)
	api.HandleFunc("/snapshot", s.handler.Snapshot).Methods(http.MethodGet)
	api.HandleFunc("/history/stats", s.handler.HistoryStats).Methods(http.MethodGet)

	return r
}

// applyMiddleware wraps the router in the same order the teacher built its
// chain: recovery outermost, then request ID, then request logging, then
// per-worker rate limiting, then API instrumentation innermost so it times
// only the routed handler. No JWT auth layer sits in front of it; worker
// and addon traffic is trusted at this boundary.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	handler = APIInstrumentationMiddleware(s.apiMetrics)(handler)
	handler = RateLimitMiddleware(float64(s.cfg.Adapter.RateLimitPerSecond), s.cfg.Adapter.RateLimitBurst, s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
