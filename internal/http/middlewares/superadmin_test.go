package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sessionCfg() SessionConfig {
	return SessionConfig{
		Secret:     "test-secret-not-for-prod",
		CookieName: "mesadine_admin",
		TTL:        time.Hour,
	}
}

func issueCookie(t *testing.T, cfg SessionConfig, id int64, username string) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if err := IssueSession(rr, cfg, id, username); err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestSession_Roundtrip(t *testing.T) {
	cfg := sessionCfg()
	cookie := issueCookie(t, cfg, 3, "admin")

	var got *Superadmin
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSuperadmin(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/superadmin/settings", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	RequireSuperadmin(cfg)(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got == nil || got.ID != 3 || got.Username != "admin" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestSession_MissingCookie401(t *testing.T) {
	cfg := sessionCfg()
	req := httptest.NewRequest(http.MethodGet, "/superadmin/settings", nil)
	rr := httptest.NewRecorder()
	RequireSuperadmin(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestSession_WrongSecret401(t *testing.T) {
	cookie := issueCookie(t, sessionCfg(), 3, "admin")

	other := sessionCfg()
	other.Secret = "a-different-secret"
	req := httptest.NewRequest(http.MethodGet, "/superadmin/settings", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	RequireSuperadmin(other)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestSession_Expired401(t *testing.T) {
	cfg := sessionCfg()
	cfg.TTL = -time.Minute
	cookie := issueCookie(t, cfg, 3, "admin")

	cfg.TTL = time.Hour
	req := httptest.NewRequest(http.MethodGet, "/superadmin/settings", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	RequireSuperadmin(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestClearSession(t *testing.T) {
	rr := httptest.NewRecorder()
	ClearSession(rr, sessionCfg())
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "" || cookies[0].MaxAge != -1 {
		t.Fatalf("expected expired empty cookie, got %+v", cookies)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	WithRequestID()(next).ServeHTTP(rr, req)
	if seen == "" {
		t.Fatal("expected generated request id in context")
	}
	if rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header/context mismatch: %q vs %q", rr.Header().Get("X-Request-ID"), seen)
	}

	// client-provided id is propagated untouched
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-from-client")
	rr = httptest.NewRecorder()
	WithRequestID()(next).ServeHTTP(rr, req)
	if seen != "rid-from-client" || rr.Header().Get("X-Request-ID") != "rid-from-client" {
		t.Fatalf("expected propagation, got %q", seen)
	}
}
