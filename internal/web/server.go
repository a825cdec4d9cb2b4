// Package web serves the local JSON API for downloads, previews and runs.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/justestif/discat/internal/plan"
	"github.com/justestif/discat/internal/runs"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8089"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration

	Downloads  Downloader
	Catalog    plan.Catalog
	Collection CollectionLoader
	Executor   Applier
	Registry   *runs.Registry
	Logger     zerolog.Logger
}

// Server is the local HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   zerolog.Logger
	timeout  time.Duration

	// runCtx bounds every run started through the API.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Downloads == nil || cfg.Catalog == nil || cfg.Collection == nil || cfg.Executor == nil || cfg.Registry == nil {
		return nil, errors.New("server requires downloads, catalog, collection, executor and registry")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	runCtx, cancel := context.WithCancel(context.Background())

	router := chi.NewRouter()

	s := &Server{
		router:    router,
		logger:    cfg.Logger,
		timeout:   cfg.ShutdownTimeout,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	s.handlers = NewHandlers(cfg, runCtx)

	// Configure middleware
	s.setupMiddleware()

	// Configure routes
	s.setupRoutes()

	// Run handlers return immediately; long work happens on run goroutines.
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/fields", s.handlers.Fields)
		r.Get("/folders", s.handlers.Folders)

		r.Post("/downloads", s.handlers.StartDownload)
		r.Post("/sync/preview", s.handlers.PreviewSync)
		r.Post("/organize/preview", s.handlers.PreviewOrganize)

		r.Get("/runs/{id}", s.handlers.GetRun)
		r.Post("/runs/{id}/start", s.handlers.StartRun)
		r.Post("/runs/{id}/cancel", s.handlers.CancelRun)
	})
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msgf("Starting server at http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels any running run.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.cancelRun()
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	// Channel to receive shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	select {
	case err := <-errCh:
		s.cancelRun()
		return err
	case <-stop:
		s.logger.Info().Msg("Shutting down server...")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}
