// Package httpapi assembles the public HTTP surface: domain handlers, the
// websocket stream, health and metrics. It is wiring only; business logic
// stays in the domain services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackguard/internal/platform/middleware"
	"trackguard/pkg/platform/httputil"
)

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Config collects everything the router mounts.
type Config struct {
	Registry *prometheus.Registry
	Handlers []Registrar
	// Stream serves GET /system/stream (websocket); optional.
	Stream http.Handler
	// Checks are probed by /healthz, keyed by component name.
	Checks map[string]HealthCheck
}

// New builds the router.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	for _, h := range cfg.Handlers {
		h.Register(r)
	}

	if cfg.Stream != nil {
		r.Method(http.MethodGet, "/system/stream", cfg.Stream)
	}
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", healthHandler(cfg.Checks))

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(components) > 0 {
			body["components"] = components
		}
		httputil.WriteJSON(w, status, body)
	}
}
