// Package server exposes the analysis workflows over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"newslens/internal/analysis"
	"newslens/internal/cache"
	"newslens/internal/config"
	"newslens/internal/core"
	"newslens/internal/feeds"
	"newslens/internal/logger"
	"newslens/internal/persistence"
	"newslens/internal/stats"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Analyzer runs the analysis workflows. *analysis.Orchestrator satisfies it.
type Analyzer interface {
	Triage(ctx context.Context, limit int) (analysis.TriageReport, error)
	DeepAnalyze(ctx context.Context, id string) (*core.Article, error)
	Compare(ctx context.Context, ids []string) (*analysis.CompareResult, error)
	Backfill(ctx context.Context, limit, daysBack int) (analysis.BackfillReport, error)
	Related(ctx context.Context, id string) ([]core.Article, error)
	ComparisonFor(ctx context.Context, id string) (*core.ComparativeAnalysis, error)
}

// Ingester fetches feeds into the store. *feeds.Fetcher satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, store feeds.Saver, feedURLs []string) (feeds.IngestReport, error)
}

// Dashboarder builds dashboard snapshots. *stats.Service satisfies it.
type Dashboarder interface {
	Dashboard(ctx context.Context) (*stats.Dashboard, error)
}

// Deps are the components served over HTTP.
type Deps struct {
	Store    persistence.Store
	Analyzer Analyzer
	Fetcher  Ingester
	Stats    Dashboarder
	Cache    cache.Cache
	FeedURLs []string
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	config     config.Server
	log        *slog.Logger

	// background triage runs outlive their request
	jobs    sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new HTTP server instance
func New(deps Deps, cfg config.Server) *Server {
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		router:  chi.NewRouter(),
		deps:    deps,
		config:  cfg,
		log:     logger.With("component", "server"),
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  config.Duration(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.WriteTimeout, 120*time.Second),
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(config.Duration(s.config.RequestTimeout, 110*time.Second)))
	s.router.Use(securityHeaders)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Get("/{id}", s.handleGetArticle)
			r.Get("/{id}/related", s.handleRelated)
			r.Get("/{id}/comparison", s.handleComparison)
			r.With(s.requireAPIKey).Post("/{id}/deep", s.handleDeepAnalyze)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Post("/fetch", s.handleFetch)
			r.Post("/triage", s.handleTriage)
			r.Post("/compare", s.handleCompare)
			r.Post("/backfill", s.handleBackfill)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests, then waits for background triage runs
// until ctx expires, after which they are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
	}
	s.cancel()

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

// runBackground runs fn detached from the request that started it.
func (s *Server) runBackground(name string, fn func(ctx context.Context)) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Background job panicked", "job", name, "panic", r)
			}
		}()
		fn(s.baseCtx)
	}()
}

// Wait blocks until background jobs finish. Used by tests.
func (s *Server) Wait() {
	s.jobs.Wait()
}
