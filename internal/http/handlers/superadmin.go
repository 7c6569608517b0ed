// Package handlers contiene los endpoints HTTP del control plane.
package handlers

import (
	"errors"
	"net/http"

	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/http/middlewares"
	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/superadmin"
	"go.uber.org/zap"
)

// Auth maneja login, logout y settings del superadmin.
type Auth struct {
	Store   *superadmin.Store
	Session middlewares.SessionConfig
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login valida credenciales y emite la cookie de sesión.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username y password son requeridos")
		return
	}

	account, err := h.Store.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, superadmin.ErrInvalidCredentials) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "usuario o password incorrectos")
		return
	}
	if err != nil {
		logger.Named("superadmin").Error("login falló", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	if err := middlewares.IssueSession(w, h.Session, account.ID, account.Username); err != nil {
		logger.Named("superadmin").Error("no se pudo emitir la sesión", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

// Logout borra la cookie. Siempre responde 204, haya sesión o no.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	middlewares.ClearSession(w, h.Session)
	w.WriteHeader(http.StatusNoContent)
}

// Settings retorna los datos de empresa de la cuenta operadora.
func (h *Auth) Settings(w http.ResponseWriter, r *http.Request) {
	account, err := h.Store.First(r.Context())
	if errors.Is(err, superadmin.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no hay cuenta superadmin")
		return
	}
	if err != nil {
		logger.Named("superadmin").Error("lectura de settings falló", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

type settingsRequest struct {
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	Email          string `json:"email"`
}

// UpdateSettings actualiza los datos de empresa.
func (h *Auth) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if err := h.Store.UpdateSettings(r.Context(), req.CompanyName, req.CompanyWebsite, req.Email); err != nil {
		logger.Named("superadmin").Error("update de settings falló", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	h.Settings(w, r)
}
