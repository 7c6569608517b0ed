package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/mesadine/internal/email"
	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/metrics"
	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
	"github.com/dropDatabas3/mesadine/internal/tenant/lifecycle"
	"github.com/dropDatabas3/mesadine/internal/tenant/provisioner"
	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

// Tenants expone el CRUD de tenants y la reconciliación.
type Tenants struct {
	Registry    *registry.Registry
	Provisioner *provisioner.Provisioner
	Lifecycle   *lifecycle.Service
	Notifier    *email.Notifier
}

// tenantRequest es el DTO de create/update. Las fechas viajan como
// YYYY-MM-DD, igual que en el panel.
type tenantRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Database    string `json:"database"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Type        string `json:"type"`
	Country     string `json:"country"`
	Description string `json:"description"`
}

const dateLayout = "2006-01-02"

func (req tenantRequest) fields(w http.ResponseWriter) (registry.Fields, bool) {
	f := registry.Fields{
		Name:        req.Name,
		Domain:      req.Domain,
		Database:    req.Database,
		Email:       req.Email,
		Phone:       req.Phone,
		Type:        req.Type,
		Country:     req.Country,
		Description: req.Description,
	}
	var err error
	if req.Start != "" {
		if f.Start, err = time.Parse(dateLayout, req.Start); err != nil {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_fields", "start: se espera YYYY-MM-DD")
			return f, false
		}
	}
	if req.End != "" {
		if f.End, err = time.Parse(dateLayout, req.End); err != nil {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_fields", "end: se espera YYYY-MM-DD")
			return f, false
		}
	}
	return f, true
}

func tenantID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "id inválido")
		return 0, false
	}
	return id, true
}

// writeTenantError mapea los sentinels del registry a status HTTP.
func writeTenantError(w http.ResponseWriter, err error, fallback string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, registry.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "tenant no encontrado")
	case errors.Is(err, registry.ErrDuplicateDomain):
		httpx.WriteError(w, http.StatusConflict, "duplicate_domain", "el dominio ya está registrado")
	case errors.Is(err, registry.ErrDuplicateDatabase):
		httpx.WriteError(w, http.StatusConflict, "duplicate_database", "la base de datos ya está registrada")
	case errors.Is(err, registry.ErrInvalidFields):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_fields", err.Error())
	default:
		logger.Named("tenants").Error("operación falló", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, fallback, "")
	}
	return true
}

// List pagina el registry. Querystring: page, per_page, order (asc|desc).
func (h *Tenants) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result, err := h.Registry.List(r.Context(), page, perPage, registry.NormalizeOrder(q.Get("order")))
	if writeTenantError(w, err, "server_error") {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// Get retorna un tenant por id.
func (h *Tenants) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	rec, err := h.Registry.Get(r.Context(), id)
	if writeTenantError(w, err, "server_error") {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

// Create ejecuta el alta completa: fila, base clonada, fixtures y theme.
// 201 con status=provisioned o provisioned_with_warnings.
func (h *Tenants) Create(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	f, ok := req.fields(w)
	if !ok {
		return
	}

	dbc := dbcontext.FromContext(r.Context())
	if dbc == nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "sin connection context")
		return
	}

	result, err := h.Provisioner.Provision(r.Context(), dbc, f)
	if errors.Is(err, provisioner.ErrPrimaryPhase) {
		logger.Named("tenants").Error("provisioning falló en fase primaria", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "provisioning_failed", "el alta fue revertida")
		return
	}
	if writeTenantError(w, err, "provisioning_failed") {
		return
	}

	if result.Clone != nil {
		metrics.ObserveClone(result.Clone.Created, result.Clone.Copied, result.Clone.Failed)
	}
	if len(result.Warnings) > 0 {
		h.Notifier.ProvisionWarnings(result.Tenant.Domain, result.Tenant.Database, result.Warnings)
	}
	httpx.WriteJSON(w, http.StatusCreated, result)
}

// Update modifica los campos administrables. La base es inmutable.
func (h *Tenants) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	var req tenantRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	f, ok := req.fields(w)
	if !ok {
		return
	}

	rec, err := h.Registry.Update(r.Context(), id, f)
	if writeTenantError(w, err, "server_error") {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

// Delete baja definitiva: fila del registry primero, base después.
func (h *Tenants) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	if err := h.Lifecycle.Delete(r.Context(), id); writeTenantError(w, err, "delete_failed") {
		return
	}
	metrics.TenantDeleted()
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Action string `json:"action"`
}

// Status cambia el estado. action=activate activa; cualquier otro valor
// deshabilita, igual que hacía el panel original.
func (h *Tenants) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	var (
		rec *registry.Record
		err error
	)
	if req.Action == "activate" {
		rec, err = h.Lifecycle.Activate(r.Context(), id)
	} else {
		rec, err = h.Lifecycle.Disable(r.Context(), id)
	}
	if writeTenantError(w, err, "server_error") {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

// Reconcile compara catálogo físico contra registry. Con ?drop=true
// además dropea las bases huérfanas.
func (h *Tenants) Reconcile(w http.ResponseWriter, r *http.Request) {
	drop := r.URL.Query().Get("drop") == "true"

	report, err := h.Lifecycle.Reconcile(r.Context(), drop)
	if writeTenantError(w, err, "reconcile_failed") {
		return
	}

	metrics.ReconcileOrphans(len(report.OrphanDatabases), len(report.OrphanRecords))
	if len(report.OrphanDatabases) > 0 || len(report.OrphanRecords) > 0 {
		h.Notifier.OrphansDetected(report.OrphanDatabases, report.OrphanRecords)
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}
