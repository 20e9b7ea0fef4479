// Package app wires the HTTP router and readiness probes.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/coverletter-assistant/internal/adapter/httpserver"
	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/observability"
	"github.com/fairyhunter13/coverletter-assistant/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{httpserver.RequestIDHeader, "ETag", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	// Model-backed endpoints share one per-IP budget.
	r.Group(func(wr chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
		}
		wr.Use(httpserver.TimeoutMiddleware(timeout))
		wr.Post("/v1/analyze", srv.AnalyzeHandler())
		wr.Post("/v1/evaluate", srv.EvaluateHandler())
		wr.Post("/v1/match", srv.MatchHandler())
		wr.Post("/v1/tags", srv.TagsHandler())
		wr.Post("/v1/cover-letter/template", srv.TemplateHandler())
		wr.Post("/v1/cover-letter/stories", srv.StoriesHandler())
		wr.Post("/v1/upload", srv.UploadHandler())
	})

	// Model-free endpoints
	r.Post("/v1/heuristics", srv.HeuristicsHandler())
	r.Post("/v1/budget", srv.BudgetHandler())
	r.Get("/v1/attempts/{id}", srv.AttemptsHandler())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/readyz", srv.ReadyzHandler())

	return httpserver.SecurityHeaders(r)
}
