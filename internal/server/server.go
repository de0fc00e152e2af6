// Package server exposes the page pipeline over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline pipelineInterface
	checks   []Check
	config   Config
}

// NewServer wires the pipeline and readiness checks into a server.
func NewServer(pl pipelineInterface, config Config, checks ...Check) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}
	return &Server{pipeline: pl, checks: checks, config: config}
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{
			"X-Request-ID",
			headerDetectedLanguage,
			headerTranslationService,
			headerTranslationCached,
		},
		MaxAge: 300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.config.RequestTimeout))
		if s.config.RequestsPerMinute > 0 {
			r.Use(httprate.Limit(
				s.config.RequestsPerMinute,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByRealIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					rateLimitHits.Inc()
					writeErrorResponse(w, "rate limit exceeded", http.StatusTooManyRequests)
				}),
			))
		}
		r.Get("/", s.indexHandler)
		r.Post("/", s.indexHandler)
	})

	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
