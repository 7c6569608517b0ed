package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

func TestTenantRequestFields_ParsesDates(t *testing.T) {
	req := tenantRequest{
		Name:     "La Parrilla",
		Domain:   "laparrilla.test",
		Database: "tenant_12_db",
		Start:    "2026-01-01",
		End:      "2027-01-01",
	}
	rr := httptest.NewRecorder()
	f, ok := req.fields(rr)
	if !ok {
		t.Fatalf("expected ok, body: %s", rr.Body.String())
	}
	if f.Start != time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("start: %v", f.Start)
	}
	if f.End.Year() != 2027 {
		t.Fatalf("end: %v", f.End)
	}
}

func TestTenantRequestFields_BadDate422(t *testing.T) {
	req := tenantRequest{Start: "01/02/2026"}
	rr := httptest.NewRecorder()
	if _, ok := req.fields(rr); ok {
		t.Fatal("expected rejection")
	}
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func chiRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/superadmin/tenants/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestTenantID(t *testing.T) {
	rr := httptest.NewRecorder()
	id, ok := tenantID(rr, chiRequest("12"))
	if !ok || id != 12 {
		t.Fatalf("expected 12, got (%d,%v)", id, ok)
	}

	for _, bad := range []string{"0", "-3", "abc", ""} {
		rr := httptest.NewRecorder()
		if _, ok := tenantID(rr, chiRequest(bad)); ok {
			t.Fatalf("%q: expected rejection", bad)
		}
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", bad, rr.Code)
		}
	}
}

func TestWriteTenantError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{registry.ErrNotFound, http.StatusNotFound},
		{registry.ErrDuplicateDomain, http.StatusConflict},
		{registry.ErrDuplicateDatabase, http.StatusConflict},
		{registry.ErrInvalidFields, http.StatusUnprocessableEntity},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		if handled := writeTenantError(rr, tc.err, "server_error"); !handled {
			t.Fatalf("%v: expected handled", tc.err)
		}
		if rr.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	if writeTenantError(rr, nil, "server_error") {
		t.Fatal("nil error must not be handled")
	}
}
