package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-consulting/meridian-auth/internal/grid"
	"github.com/meridian-consulting/meridian-auth/internal/identity"
	"github.com/meridian-consulting/meridian-auth/internal/observability"
	"github.com/meridian-consulting/meridian-auth/internal/platform/httpx"
	"github.com/meridian-consulting/meridian-auth/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	IdentityHandler *identity.Handler
	GridHandler     *grid.Handler
	JobsHandler     *jobs.Handler
	AuthMiddleware  func(http.Handler) http.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Route("/api/auth", func(r chi.Router) {
		if params.IdentityHandler != nil {
			params.IdentityHandler.MountRoutes(r)
		}
		if params.GridHandler != nil {
			r.Group(func(r chi.Router) {
				if params.AuthMiddleware != nil {
					r.Use(params.AuthMiddleware)
				}
				params.GridHandler.MountRoutes(r)
			})
		}
	})

	return r
}
