package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/nhs-hospitalization-etl/internal/domain"
	"github.com/couchcryptid/nhs-hospitalization-etl/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TableSource provides the latest hospital cases table.
type TableSource interface {
	sharedobs.ReadinessChecker
	Latest() (domain.Table, bool)
}

// RateLimit configures the per-client token bucket on /api routes.
type RateLimit struct {
	RPS   int64
	Burst int64
}

// Server exposes health, readiness, metrics, and the hospital cases API.
type Server struct {
	httpServer *http.Server
	limiter    *rateLimiter
	logger     *slog.Logger
	sweepCtx   context.Context
	stopSweep  context.CancelFunc
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and /api/v1 routes.
func NewServer(addr string, tables TableSource, limit RateLimit, logger *slog.Logger, metrics *observability.Metrics) *Server {
	r := chi.NewRouter()
	sweepCtx, stopSweep := context.WithCancel(context.Background())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		limiter:   newRateLimiter(limit.RPS, limit.Burst),
		logger:    logger,
		sweepCtx:  sweepCtx,
		stopSweep: stopSweep,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(tables))
	r.Handle("/metrics", promhttp.Handler())

	h := &handlers{tables: tables, logger: logger}
	// Group middleware runs after routing, so rejected requests keep their route label.
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Get("/api/v1/regions", h.regions)
		r.Get("/api/v1/hospital-cases", h.hospitalCases)
		r.Get("/api/v1/hospital-cases.csv", h.hospitalCasesCSV)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	go s.limiter.sweep(s.sweepCtx, 30*time.Minute)

	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopSweep()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
