package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forPelevin/hookcut/internal/platform/logger"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
)

// NewRouter mounts h with request ids, request logging and metrics. met may
// be nil, in which case /metrics is not served.
func NewRouter(h *Handler, log *slog.Logger, met *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))

	r.Get("/healthz", h.Health)
	if met != nil {
		r.Method(http.MethodGet, "/metrics", met.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/hooks/resolve", h.ResolveHooks)
		r.Post("/clips/plan", h.PlanClips)
	})
	return r
}
