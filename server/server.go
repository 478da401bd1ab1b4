// Package server exposes the advice pipeline over HTTP.
//
// Routes:
//
//	POST /api/chat                      {query, user_id?} -> answer
//	POST /api/portfolios                store a portfolio (when a store is configured)
//	GET  /api/portfolios/{userID}       latest portfolio of a user
//	GET  /healthz                       dependency checks
//	GET  /metrics                       Prometheus metrics (when configured)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/finmesh/logging"
	"github.com/hupe1980/finmesh/metrics"
	"github.com/hupe1980/finmesh/portfolio"
)

// Options configures the HTTP handler.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// Portfolios enables the portfolio routes.
	Portfolios portfolio.Store
	// Checks are run by /healthz, keyed by component name.
	Checks  map[string]HealthChecker
	Version string
	Now     func() time.Time
}

type handler struct {
	advisor    Advisor
	portfolios portfolio.Store
	checks     map[string]HealthChecker
	logger     logging.Logger
	version    string
	now        func() time.Time
	started    time.Time
}

// NewHandler builds the routing handler for adv.
func NewHandler(adv Advisor, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		advisor:    adv,
		portfolios: opts.Portfolios,
		checks:     opts.Checks,
		logger:     opts.Logger,
		version:    opts.Version,
		now:        opts.Now,
		started:    opts.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	if h.portfolios != nil {
		mux.HandleFunc("POST /api/portfolios", h.handleCreatePortfolio)
		mux.HandleFunc("GET /api/portfolios/{userID}", h.handleGetPortfolio)
	}

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	return recoverer(opts.Logger, requestLogger(opts.Logger, mux))
}

// Config holds the listener settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps an http.Server with lifecycle management.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// New creates a Server serving handler.
func New(cfg Config, handler http.Handler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server.start", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}
