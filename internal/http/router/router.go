// Package router arma el árbol de rutas del control plane.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/http/handlers"
	"github.com/dropDatabas3/mesadine/internal/http/middlewares"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
)

type Config struct {
	Auth    *handlers.Auth
	Tenants *handlers.Tenants
	App     *handlers.TenantApp
	Health  *handlers.Health
	Metrics http.Handler

	Session middlewares.SessionConfig
	Resolve middlewares.ResolveConfig
	Guard   middlewares.GuardConfig

	// Pools y ControlDatabase arman el connection context de las rutas
	// administrativas, que corren siempre contra el control plane.
	Pools           dbcontext.PoolProvider
	ControlDatabase string
}

// New construye el router completo.
//
//	/healthz /readyz /metrics        sin auth
//	/superadmin/...                  control-plane context + sesión JWT
//	/api/...                         resolución por Host + TenantGuard
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares.WithRequestID(), middlewares.WithLogging())

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/superadmin", func(sr chi.Router) {
		sr.Use(middlewares.WithControlPlane(cfg.Pools, cfg.ControlDatabase))

		sr.Post("/login", cfg.Auth.Login)
		sr.Post("/logout", cfg.Auth.Logout)

		sr.Group(func(pr chi.Router) {
			pr.Use(middlewares.RequireSuperadmin(cfg.Session))

			pr.Get("/settings", cfg.Auth.Settings)
			pr.Put("/settings", cfg.Auth.UpdateSettings)

			pr.Get("/tenants", cfg.Tenants.List)
			pr.Post("/tenants", cfg.Tenants.Create)
			pr.Get("/tenants/{id}", cfg.Tenants.Get)
			pr.Put("/tenants/{id}", cfg.Tenants.Update)
			pr.Delete("/tenants/{id}", cfg.Tenants.Delete)
			pr.Post("/tenants/{id}/status", cfg.Tenants.Status)

			pr.Post("/reconcile", cfg.Tenants.Reconcile)
		})
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Use(middlewares.WithTenant(cfg.Resolve), middlewares.TenantGuard(cfg.Guard))

		ar.Get("/whoami", cfg.App.Whoami)
		ar.Post("/notifications", cfg.App.Ack)
		ar.Post("/waiter-call", cfg.App.Ack)
		ar.Post("/valet-request", cfg.App.Ack)
		ar.Post("/table-notes", cfg.App.Ack)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "")
	})

	return r
}
