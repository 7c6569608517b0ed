package middlewares

import (
	"net"
	"net/http"
	"strings"

	"github.com/dropDatabas3/mesadine/internal/audit"
	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
)

// Paths cuya operación siempre se audita, independiente del resultado
// del check de contexto.
var sensitivePaths = []string{"/notifications", "/waiter-call", "/valet-request", "/table-notes"}

// GuardConfig configura el TenantGuard.
type GuardConfig struct {
	// ControlDatabase es el nombre de la base del control plane.
	ControlDatabase string
	// LegacyDatabase es la base compartida previa a multi-tenancy;
	// sigue siendo un contexto legítimo.
	LegacyDatabase string
	// Audit recibe los AuditRecord de operaciones sensibles.
	Audit audit.Sink
	// Metrics reporta cada check. result: allow | violation
	Metrics func(result string)
}

// TenantGuard valida que el connection context del request apunte a una
// base legítima (control plane, legacy o tenant_<id>_db) antes de que
// corra cualquier lógica tenant-scoped. Un contexto ilegítimo se loguea
// con la metadata completa del request y corta con una falla genérica:
// el request jamás sigue hacia una base no prevista.
func TenantGuard(cfg GuardConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := ""
			if dbc := dbcontext.FromContext(r.Context()); dbc != nil {
				current = dbc.Current()
			}

			if !cfg.allowed(current) {
				if cfg.Metrics != nil {
					cfg.Metrics("violation")
				}
				logger.From(r.Context()).Error("operation attempted on non-tenant database",
					logger.Database(current),
					logger.URL(requestURL(r)),
					logger.Method(r.Method),
					logger.ClientIP(clientIP(r)),
					logger.UserAgent(r.UserAgent()),
				)
				httpx.WriteError(w, http.StatusInternalServerError,
					"invalid_database_context", "invalid database context for tenant operations")
				return
			}

			if cfg.Metrics != nil {
				cfg.Metrics("allow")
			}

			if cfg.Audit != nil && isSensitivePath(r.URL.Path) {
				cfg.Audit.Write(r.Context(), "tenant_sensitive_operation", audit.Record{
					Database:  current,
					URL:       requestURL(r),
					Method:    r.Method,
					IP:        clientIP(r),
					UserAgent: r.UserAgent(),
					TenantID:  resolveTenantID(r, current),
				})
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (cfg GuardConfig) allowed(current string) bool {
	if current == "" {
		return false
	}
	if current == cfg.ControlDatabase || current == cfg.LegacyDatabase {
		return true
	}
	return dbcontext.IsTenantDatabase(current)
}

func isSensitivePath(path string) bool {
	for _, p := range sensitivePaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// resolveTenantID prefiere el id del tenant resuelto en el request; el
// parseo del nombre de la base queda como fallback.
func resolveTenantID(r *http.Request, database string) *int64 {
	if t := GetTenant(r.Context()); t != nil {
		id := t.ID
		return &id
	}
	if id, ok := dbcontext.TenantIDFromDatabase(database); ok {
		return &id
	}
	return nil
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
