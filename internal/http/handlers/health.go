package handlers

import (
	"database/sql"
	"net/http"

	httpx "github.com/dropDatabas3/mesadine/internal/http"
)

// Health expone liveness y readiness.
type Health struct {
	DB *sql.DB
}

func (h *Health) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz falla si la base control-plane no responde.
func (h *Health) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "control database unreachable")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
