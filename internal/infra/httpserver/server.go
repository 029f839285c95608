// internal/infra/httpserver/server.go
package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const healthCheckTimeout = 2 * time.Second

// Server exposes the operational endpoints: /healthz and /metrics. The
// pipeline itself has no request surface; this server exists for probes and
// scrapers.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Entry
}

func New(port string, db *sql.DB, redisClient *redis.Client, nc *nats.Conn, logger *logrus.Entry) *Server {
	r := chi.NewRouter()

	h := &healthHandler{db: db, redis: redisClient, nc: nc}
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.logger.Infof("HTTP server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("HTTP server stopped: %v", err)
		}
	}()
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type healthHandler struct {
	db    *sql.DB
	redis *redis.Client
	nc    *nats.Conn
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health reports 200 when Postgres, Redis and NATS all respond, 503
// otherwise. The body names the failing dependency.
func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if status := h.nc.Status(); status != nats.CONNECTED {
		checks["nats"] = fmt.Sprintf("status %v", status)
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	resp := healthStatus{Status: "ok", Checks: checks}
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		resp.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
