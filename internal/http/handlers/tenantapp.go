package handlers

import (
	"net/http"

	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/http/middlewares"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
)

// TenantApp es el punto de montaje tenant-scoped. Los controllers de
// negocio (órdenes, menú, pagos) viven fuera de este servicio; acá solo
// se expone la identidad resuelta y el acuse de las rutas sensibles,
// que ya pasaron por resolución, guard y auditoría.
type TenantApp struct{}

// Whoami retorna el tenant resuelto y el database del request.
func (h *TenantApp) Whoami(w http.ResponseWriter, r *http.Request) {
	tenant := middlewares.GetTenant(r.Context())
	if tenant == nil {
		httpx.WriteError(w, http.StatusNotFound, "unknown_tenant", "")
		return
	}
	current := ""
	if dbc := dbcontext.FromContext(r.Context()); dbc != nil {
		current = dbc.Current()
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"tenant":   tenant,
		"database": current,
	})
}

// Ack acusa recibo de una operación sensible ya auditada.
func (h *TenantApp) Ack(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
