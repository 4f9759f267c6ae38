// Package server runs the observability HTTP endpoints: Prometheus metrics,
// health and readiness probes, and the profiler.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/kzs0/otex/metric/prometheus"
	"github.com/kzs0/otex/profile"
)

// Config configures the observability HTTP server.
type Config struct {
	// Addr is the address to listen on (e.g., ":9090").
	Addr          string
	EnableMetrics bool
	EnablePprof   bool

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10 seconds
	ReadTimeout time.Duration

	// ReadHeaderTimeout protects against slow-loris clients.
	// Default: 5 seconds
	ReadHeaderTimeout time.Duration

	// Default: 30 seconds
	WriteTimeout time.Duration

	// Default: 120 seconds
	IdleTimeout time.Duration

	// Default: 1 MB (1 << 20)
	MaxHeaderBytes int

	// ShutdownTimeout bounds Shutdown when its context has no deadline.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a configuration with production timeouts.
func DefaultConfig() Config {
	return Config{
		Addr:              ":9090",
		EnableMetrics:     true,
		EnablePprof:       true,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Server provides HTTP endpoints for metrics and profiling.
type Server struct {
	router          *mux.Router
	server          *http.Server
	shutdownTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
}

// New creates the server. reg may be nil when metrics are disabled.
func New(reg *promclient.Registry, cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		router:          mux.NewRouter(),
		shutdownTimeout: cfg.ShutdownTimeout,
		checks:          map[string]Check{},
	}

	if cfg.EnableMetrics && reg != nil {
		s.router.Handle("/metrics", prometheus.Handler(reg)).Methods(http.MethodGet)
	}
	if cfg.EnablePprof {
		profile.Register(s.router)
	}
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.ready).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	return s
}

// AddCheck registers a readiness check. /ready answers 503 while any check
// fails.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(name + ": " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListenAndServe starts the server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve starts the server on an existing listener. It returns nil after
// Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server. Without a deadline on ctx the
// configured ShutdownTimeout applies.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the router so applications can mount more routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}
