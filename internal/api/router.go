// Package api wires the HTTP surface of the config service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/confhub/confhub/internal/api/handler"
	"github.com/confhub/confhub/internal/api/middleware"
	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/metrics"
	"github.com/confhub/confhub/internal/service"
)

// NewRouter builds the router: health and metrics are open, everything
// under /api/v1 requires a bearer token.
func NewRouter(svc *service.ConfigService, tokenSecret []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(tokenSecret))

		r.Mount("/domain-configs", handler.NewConfigHandler(domain.TierDomain, svc).Routes())
		r.Mount("/workspace-configs", handler.NewConfigHandler(domain.TierWorkspace, svc).Routes())
		r.Mount("/shared-configs", handler.NewConfigHandler(domain.TierProjectShared, svc).Routes())
		r.Mount("/user-configs", handler.NewConfigHandler(domain.TierUser, svc).Routes())
	})

	return r
}
