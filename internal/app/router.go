package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gasdist/stockledger/internal/auth"
	"github.com/gasdist/stockledger/internal/catalog"
	"github.com/gasdist/stockledger/internal/observability"
	"github.com/gasdist/stockledger/internal/rbac"
	"github.com/gasdist/stockledger/internal/stock"
	"github.com/gasdist/stockledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthService        *auth.Service
	StockHandler       *stock.Handler
	CatalogHandler     *catalog.Handler
	JobHandler         *jobs.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with stockledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.BasicAuth(params.AuthService, params.Logger))
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		r.Route("/products", func(r chi.Router) {
			if params.StockHandler != nil {
				params.StockHandler.MountProductRoutes(r)
			}
			if params.CatalogHandler != nil {
				params.CatalogHandler.MountProductRoutes(r)
			}
		})
		if params.CatalogHandler != nil {
			r.Route("/customers", params.CatalogHandler.MountCustomerRoutes)
		}
		if params.StockHandler != nil {
			r.Route("/stock", params.StockHandler.MountRoutes)
		}
	})

	return r
}
