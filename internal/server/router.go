package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"session-sentinel/internal/common/metrics"
	"session-sentinel/internal/common/observability"
)

// NewRouter assembles the HTTP surface. The interceptor guards only the
// session routes; login, logout, and the probes stay outside so they work
// without (or with a dead) session.
func NewRouter(handlers *Handlers, interceptor *Interceptor, obs *observability.Observability) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument(obs))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login)
		r.Delete("/session", handlers.Logout)

		r.Group(func(r chi.Router) {
			r.Use(interceptor.RequireSession)
			r.Get("/session", handlers.Detail)
			r.Get("/session/status", handlers.Status)
			r.Post("/session/extend", handlers.Extend)
		})
	})

	r.Get("/health", handlers.Health)
	r.Get("/ready", handlers.Ready)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// instrument records per-route request counts and latency.
func instrument(obs *observability.Observability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}

			elapsed := time.Since(start)
			metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
			if obs != nil {
				obs.RecordRequest(r.Context(), route, ww.Status())
				obs.RecordRequestDuration(r.Context(), elapsed, route)
			}
		})
	}
}
