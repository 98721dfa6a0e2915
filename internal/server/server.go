// Package server exposes the catalog, watch progress and playback sessions over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/treefix50/streamit/internal/catalog"
	"github.com/treefix50/streamit/internal/playback"
	"github.com/treefix50/streamit/internal/watchstate"
)

type Options struct {
	Addr     string
	MediaDir string
	CORS     bool
	// RequestsPerMinute limits /api per client IP; 0 disables the limit.
	RequestsPerMinute int
	// ImportInterval is the minimum gap between imports from one client.
	ImportInterval time.Duration
	// CatalogReloadInterval re-reads the catalog periodically; 0 disables it.
	CatalogReloadInterval time.Duration
	Logger                zerolog.Logger
}

type Deps struct {
	Catalog  *catalog.Catalog
	Store    *watchstate.Store
	Sessions *playback.Manager
	// Health is optional; without it /health only reports that the process is up.
	Health HealthChecker
}

type Server struct {
	opts          Options
	catalog       *catalog.Catalog
	store         *watchstate.Store
	sessions      *playback.Manager
	health        HealthChecker
	logger        zerolog.Logger
	importLimiter *RateLimiter
	router        chi.Router
	http          *http.Server
	now           func() time.Time

	reloadTicker *time.Ticker
	reloadStop   chan struct{}
	reloadDone   chan struct{}
}

func New(opts Options, deps Deps) *Server {
	s := &Server{
		opts:          opts,
		catalog:       deps.Catalog,
		store:         deps.Store,
		sessions:      deps.Sessions,
		health:        deps.Health,
		logger:        opts.Logger,
		importLimiter: NewRateLimiter(opts.ImportInterval),
		router:        chi.NewRouter(),
		now:           time.Now,
	}
	s.routes()

	if opts.CatalogReloadInterval > 0 {
		s.reloadTicker = time.NewTicker(opts.CatalogReloadInterval)
		s.reloadStop = make(chan struct{})
		s.reloadDone = make(chan struct{})
		go s.runReloadTicker()
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(logMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.opts.CORS))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/media/*", s.handleMedia)

	r.Route("/api", func(r chi.Router) {
		if s.opts.RequestsPerMinute > 0 {
			r.Use(apiRateLimit(s.opts.RequestsPerMinute, time.Minute))
		}

		r.Get("/catalog/{kind}", s.handleCatalogList)
		r.Get("/catalog/{kind}/facets", s.handleCatalogFacets)
		r.Get("/catalog/{kind}/latest", s.handleCatalogLatest)
		r.Get("/catalog/{kind}/item/{title}", s.handleCatalogItem)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Get("/featured", s.handleFeatured)

		r.Route("/progress", func(r chi.Router) {
			r.Get("/", s.handleProgressState)
			r.Get("/films/{title}", s.handleFilmProgress)
			r.Put("/films/{title}", s.handlePutFilmProgress)
			r.Get("/series/{title}/{season}/{episode}", s.handleEpisodeProgress)
			r.Put("/series/{title}/{season}/{episode}", s.handlePutEpisodeProgress)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
		})

		r.Route("/playback", func(r chi.Router) {
			r.Post("/", s.handlePlaybackOpen)
			r.Post("/{id}/play", s.handlePlaybackPlay)
			r.Post("/{id}/loadedmetadata", s.handlePlaybackLoadedMetadata)
			r.Post("/{id}/timeupdate", s.handlePlaybackTimeUpdate)
			r.Post("/{id}/pause", s.handlePlaybackPause)
			r.Post("/{id}/ended", s.handlePlaybackEnded)
			r.Delete("/{id}", s.handlePlaybackClose)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error { return s.http.ListenAndServe() }

// Close stops the reload ticker, drains HTTP and flushes every open playback session.
func (s *Server) Close() error {
	s.stopReloadTicker()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	if s.sessions != nil {
		s.sessions.Close(ctx)
	}
	return err
}

func (s *Server) runReloadTicker() {
	defer close(s.reloadDone)
	for {
		select {
		case <-s.reloadTicker.C:
			if err := s.catalog.Reload(); err != nil {
				s.logger.Warn().Err(err).Msg("periodic catalog reload failed")
			}
		case <-s.reloadStop:
			s.reloadTicker.Stop()
			return
		}
	}
}

func (s *Server) stopReloadTicker() {
	if s.reloadStop == nil {
		return
	}
	close(s.reloadStop)
	<-s.reloadDone
	s.reloadStop = nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		results, err := s.health.IntegrityCheck()
		if err != nil || len(results) != 1 || results[0] != "ok" {
			s.logger.Error().Err(err).Strs("integrity", results).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": "storage integrity check failed"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
