package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"dpcli/internal/config"
	"dpcli/internal/infrastructure"
	custommw "dpcli/internal/middleware"
)

// Server is the results API server. It is read-only: it serves whatever the
// store holds and never mutates run artifacts.
type Server struct {
	cfg    *config.Config
	store  *ResultStore
	logger *slog.Logger
	srv    *http.Server
}

// ServerOption customizes the server during construction.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics     *infrastructure.PipelineMetrics
	metricsHTTP http.Handler
}

// WithMetrics wires HTTP request metrics into the middleware chain.
func WithMetrics(m *infrastructure.PipelineMetrics) ServerOption {
	return func(o *serverOptions) { o.metrics = m }
}

// WithMetricsEndpoint exposes the given handler at /metrics.
func WithMetricsEndpoint(h http.Handler) ServerOption {
	return func(o *serverOptions) { o.metricsHTTP = h }
}

// NewServer assembles the router and the underlying http.Server.
func NewServer(cfg *config.Config, store *ResultStore, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var options serverOptions
	for _, opt := range opts {
		opt(&options)
	}

	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(logger))
	r.Use(custommw.Recoverer(logger))
	r.Use(custommw.SecurityHeaders)
	r.Use(custommw.Compress(5))
	if options.metrics != nil {
		r.Use(custommw.Metrics(options.metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "ok"})
	})
	if options.metricsHTTP != nil {
		r.Handle("/metrics", options.metricsHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if cfg.Server.RateLimit.Enabled {
			limiter := custommw.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger)
			r.Use(limiter.Handler)
		}
		r.Mount("/", NewResultsHandler(store, logger).Routes())
	})

	return &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until the context is canceled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("results API listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down results API")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
