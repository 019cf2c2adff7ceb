// Package server provides the HTTP API for transcript search, the document catalog and jobs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/limudai/limud/internal/config"
	"github.com/limudai/limud/internal/importer"
	"github.com/limudai/limud/internal/search"
	"github.com/limudai/limud/internal/storage"
	"github.com/limudai/limud/internal/watcher"
)

// Server is the HTTP server for the limud API.
type Server struct {
	engine   *search.Engine
	catalog  storage.Catalog
	importer *importer.Importer
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server

	watch         WatchService
	configPath    string
	watchConfigMu sync.Mutex
}

// WatchService manages watched import directories. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

var _ WatchService = (*watcher.Watcher)(nil)

// Option configures a Server.
type Option func(*Server)

// WithWatcher enables the watch directory endpoints. When configPath is set,
// directory changes are persisted to the config file.
func WithWatcher(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	catalog storage.Catalog,
	imp *importer.Importer,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   engine,
		catalog:  catalog,
		importer: imp,
		config:   cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleCreateDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
			r.Get("/{id}/transcript", s.handleGetTranscript)
			r.Put("/{id}/transcript", s.handlePutTranscript)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleCreateJob)
			r.Get("/{id}", s.handleGetJob)
			r.Put("/{id}/status", s.handleUpdateJobStatus)
			r.Post("/{id}/retry", s.handleRetryJob)
		})

		r.Get("/status", s.handleStatus)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs each request at debug level with zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
