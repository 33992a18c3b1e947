package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendtrack/vendtrack/internal/auth"
	"github.com/vendtrack/vendtrack/internal/ingest"
	"github.com/vendtrack/vendtrack/internal/inventory"
	"github.com/vendtrack/vendtrack/internal/locations"
	"github.com/vendtrack/vendtrack/internal/observability"
	"github.com/vendtrack/vendtrack/internal/shared"
	"github.com/vendtrack/vendtrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	IngestHandler    *ingest.Handler
	LocationsHandler *locations.Handler
	InventoryHandler *inventory.Handler
	JobHandler       *jobs.Handler
	Pool             *pgxpool.Pool
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.IngestHandler != nil {
		r.Route("/csv", func(sub chi.Router) {
			sub.Use(requireUser)
			params.IngestHandler.MountRoutes(sub)
		})
	}
	if params.LocationsHandler != nil {
		r.Route("/locations", func(sub chi.Router) {
			sub.Use(requireUser)
			params.LocationsHandler.MountRoutes(sub)
		})
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", func(sub chi.Router) {
			sub.Use(requireUser)
			params.InventoryHandler.MountRoutes(sub)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(sub chi.Router) {
			params.JobHandler.MountRoutes(sub)
			sub.Group(func(g chi.Router) {
				g.Use(requireUser)
				params.JobHandler.MountTriggerRoutes(g)
			})
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// requireUser rejects requests without an authenticated session.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
