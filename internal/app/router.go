package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasira-pos/kasira-pos/internal/auth"
	"github.com/kasira-pos/kasira-pos/internal/catalog"
	"github.com/kasira-pos/kasira-pos/internal/inventory"
	"github.com/kasira-pos/kasira-pos/internal/observability"
	"github.com/kasira-pos/kasira-pos/internal/rbac"
	"github.com/kasira-pos/kasira-pos/internal/sales"
	"github.com/kasira-pos/kasira-pos/internal/shared"
	"github.com/kasira-pos/kasira-pos/internal/users"
	"github.com/kasira-pos/kasira-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	InventoryHandler *inventory.Handler
	SalesHandler     *sales.Handler
	UsersHandler     *users.Handler
	JobHandler       *jobs.Handler
	Pool             *pgxpool.Pool
	RBACMiddleware   rbac.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuth)

		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/sales", params.SalesHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAll(rbac.PermJobsManage))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
