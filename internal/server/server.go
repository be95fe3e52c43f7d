// Package server exposes model inspection over HTTP using chi.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/philipparndt/gomesh/internal/catalog"
	"github.com/philipparndt/gomesh/pkg/analysis"
	"github.com/philipparndt/gomesh/pkg/loader"
	"github.com/philipparndt/gomesh/pkg/watcher"
)

// Server answers detect, info, stats and validate requests for model files
// below a root directory.
type Server struct {
	loader   *loader.Loader
	root     string
	catalog  catalog.Catalog
	watcher  *watcher.FileWatcher
	validate analysis.ValidateOptions
	logger   *zap.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog records every computed stats result in cat and serves the
// /api/catalog routes from it.
func WithCatalog(cat catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = cat
	}
}

// WithWatcher invalidates cached models when their file changes.
func WithWatcher(fw *watcher.FileWatcher) Option {
	return func(s *Server) {
		s.watcher = fw
	}
}

// WithValidateOptions sets the geometry validator options.
func WithValidateOptions(opts analysis.ValidateOptions) Option {
	return func(s *Server) {
		s.validate = opts
	}
}

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server resolving request paths against root.
func New(l *loader.Loader, root string, opts ...Option) *Server {
	s := &Server{
		loader:  l,
		root:    root,
		logger:  zap.NewNop(),
		watched: map[string]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/detect/*", s.Detect)
		r.Get("/info/*", s.Info)
		r.Get("/stats/*", s.Stats)
		r.Get("/validate/*", s.Validate)
		r.Get("/catalog", s.ListCatalog)
		r.Get("/catalog/*", s.GetCatalog)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting HTTP server", zap.String("address", addr), zap.String("root", s.root))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// watch registers path with the file watcher once.
func (s *Server) watch(path string) {
	if s.watcher == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[path]; ok {
		return
	}
	if err := s.loader.Watch(s.watcher, path, nil); err != nil {
		s.logger.Warn("failed to watch model", zap.String("path", path), zap.Error(err))
		return
	}
	s.watched[path] = struct{}{}
}
