package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dropDatabas3/mesadine/internal/cache"
	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

// DomainResolver resuelve un tenant por dominio (lo implementa el registry).
type DomainResolver interface {
	GetByDomain(ctx context.Context, domain string) (*registry.Record, error)
}

// ResolveConfig configura el middleware de resolución de tenant.
type ResolveConfig struct {
	Resolver        DomainResolver
	Pools           dbcontext.PoolProvider
	ControlDatabase string
	Cache           cache.Cache   // opcional
	CacheTTL        time.Duration // default 30s
}

// WithTenant resuelve el tenant por el Host del request, inyecta el
// TenantRecord y un connection context apuntado a su base. El lookup va
// por cache (memory o redis según config) para no pegarle al control
// plane en cada request.
func WithTenant(cfg ResolveConfig) Middleware {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	lookup := func(ctx context.Context, domain string) (*registry.Record, error) {
		if cfg.Cache != nil {
			if b, ok := cfg.Cache.Get("tenant:" + domain); ok {
				var rec registry.Record
				if json.Unmarshal(b, &rec) == nil {
					return &rec, nil
				}
			}
		}
		rec, err := cfg.Resolver.GetByDomain(ctx, domain)
		if err != nil {
			return nil, err
		}
		if cfg.Cache != nil {
			if b, err := json.Marshal(rec); err == nil {
				cfg.Cache.Set("tenant:"+domain, b, ttl)
			}
		}
		return rec, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			domain := hostWithoutPort(r.Host)

			rec, err := lookup(r.Context(), domain)
			if err != nil {
				if errors.Is(err, registry.ErrNotFound) {
					httpx.WriteError(w, http.StatusNotFound, "unknown_tenant", "no tenant for host")
					return
				}
				logger.From(r.Context()).Error("tenant_resolution_failed",
					logger.Domain(domain), logger.Err(err))
				httpx.WriteError(w, http.StatusInternalServerError, "tenant_resolution_failed", "")
				return
			}
			if rec.Status != registry.StatusActive {
				httpx.WriteError(w, http.StatusForbidden, "tenant_disabled", "tenant is disabled")
				return
			}

			dbc := dbcontext.NewFor(cfg.Pools, cfg.ControlDatabase, rec.Database)
			ctx := setTenant(r.Context(), rec)
			ctx = dbcontext.ToContext(ctx, dbc)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.TenantID(rec.ID),
				logger.Database(rec.Database),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithControlPlane inyecta un connection context apuntado al control
// plane. Para las rutas superadmin, que nunca tocan bases de tenant.
func WithControlPlane(pools dbcontext.PoolProvider, controlDatabase string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dbc := dbcontext.New(pools, controlDatabase)
			next.ServeHTTP(w, r.WithContext(dbcontext.ToContext(r.Context(), dbc)))
		})
	}
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
