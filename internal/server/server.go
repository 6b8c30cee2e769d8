// Package server implements the HTTP map viewer.
//
// The server holds one [pipeline.Dataset] at a time. Reads go through an
// atomic pointer, so requests never observe a half-built dataset; a reload
// builds a new dataset off to the side and swaps it in only on success.
// Every swap clears the selection sessions because their cluster and school
// IDs may no longer exist.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/singleflight"

	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
	"github.com/schoolmaps/overcrowding/pkg/session"
)

// Defaults for Config.
const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultRequestTimeout = 60 * time.Second
	DefaultCleanupEvery   = 5 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Config holds server settings. Field tags let the CLI read it from the
// [server] table of the config file.
type Config struct {
	Addr           string        `toml:"addr"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	SessionTTL     time.Duration `toml:"session_ttl"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = session.DefaultTTL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Server serves the map, the statistics API and selection sessions.
type Server struct {
	cfg      Config
	runner   *pipeline.Runner
	opts     pipeline.Options
	sessions *session.MemoryStore
	logger   *log.Logger

	dataset atomic.Pointer[pipeline.Dataset]
	reloads singleflight.Group
}

// New creates a server. No dataset is loaded until [Server.Load].
func New(runner *pipeline.Runner, opts pipeline.Options, cfg Config, logger *log.Logger) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = log.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Server{
		cfg:      cfg,
		runner:   runner,
		opts:     opts,
		sessions: session.NewMemoryStore(),
		logger:   logger,
	}
}

// Dataset returns the current dataset, or nil before the first load.
func (s *Server) Dataset() *pipeline.Dataset {
	return s.dataset.Load()
}

// Sessions returns the session store.
func (s *Server) Sessions() session.Store {
	return s.sessions
}

// Load fetches the inputs and swaps in a freshly built dataset. On failure
// the previous dataset stays in place. Concurrent calls share one load,
// which runs detached from any single caller and is bounded by the request
// timeout. A caller whose ctx ends stops waiting without cancelling it.
func (s *Server) Load(ctx context.Context) (*pipeline.Dataset, error) {
	ch := s.reloads.DoChan("load", func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
		defer cancel()

		opts := s.opts
		opts.Refresh = s.dataset.Load() != nil
		ds, err := s.runner.Dataset(lctx, opts)
		if err != nil {
			return nil, err
		}
		s.dataset.Store(ds)
		if err := s.sessions.Clear(lctx); err != nil {
			s.logger.Warn("clear sessions", "err", err)
		}
		return ds, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		s.logger.Error("load failed, keeping previous dataset", "err", res.Err)
		return nil, res.Err
	}
	ds := res.Val.(*pipeline.Dataset)
	if !res.Shared {
		s.logger.Info("dataset loaded", "year", ds.Year, "clusters", len(ds.Clusters), "schools", len(ds.Schools))
	}
	return ds, nil
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireDataset)
		r.Get("/", s.handleIndex)
		r.Get("/map.svg", s.handleMap)

		r.Route("/api", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/clusters", s.handleClusters)
			r.Get("/clusters/{id}", s.handleCluster)
			r.Get("/schools/{id}", s.handleSchool)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateSession)
				r.Route("/{sid}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Delete("/", s.handleDeleteSession)
					r.Post("/clusters/{id}", s.handleSelectCluster)
					r.Post("/schools/{id}", s.handleSelectSchool)
					r.Post("/reset", s.handleResetSession)
					r.Get("/map.svg", s.handleSessionMap)
				})
			})
		})
	})

	// Reload must work even when the first load failed.
	r.Post("/api/reload", s.handleReload)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sessions.RunCleanup(ctx, DefaultCleanupEvery)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("viewer listening", "addr", "http://"+s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down viewer")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requireDataset(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.dataset.Load() == nil {
			writeError(w, errors.New(errors.ErrCodeUnavailable, "no dataset loaded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
