// Package server exposes the planner over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cine-journey/metrics"
	"cine-journey/planner"
	"cine-journey/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Planner is the behaviour the HTTP handlers need
type Planner interface {
	SearchContent(ctx context.Context, query string, limit int) ([]storage.Content, error)
	SemanticSearch(ctx context.Context, query string, limit int) ([]storage.Content, error)
	PlanJourney(ctx context.Context, req planner.JourneyRequest) (planner.Journey, error)
}

// Catalog lists stored content; satisfied by *storage.SQLiteStorage
type Catalog interface {
	GetAllContent() ([]storage.Content, error)
	GetContentByType(contentType storage.ContentType) ([]storage.Content, error)
	SearchContent(title string) ([]storage.Content, error)
}

type Options struct {
	// RateLimit is requests per minute per client IP; 0 disables limiting
	RateLimit      int
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type Server struct {
	planner  Planner
	catalog  Catalog
	opts     Options
	validate *validator.Validate
	router   chi.Router
}

// New builds the server; catalog may be nil when storage is disabled
func New(p Planner, catalog Catalog, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		planner:  p,
		catalog:  catalog,
		opts:     opts,
		validate: validator.New(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.Post("/search", s.handleSearch)
		r.Post("/semantic-search", s.handleSemanticSearch)
		r.Post("/plan-journey", s.handlePlanJourney)
		r.Get("/catalog", s.handleCatalog)
	})

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs each request and records its duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordAPIRequest(r.Method, route, status, duration)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}
