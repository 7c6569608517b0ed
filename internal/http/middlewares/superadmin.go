package middlewares

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

// =================================================================================
// SUPERADMIN SESSION
// =================================================================================

// SessionConfig configura la cookie de sesión del superadmin.
type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type superadminKey struct{}

// Superadmin identifica la sesión autenticada.
type Superadmin struct {
	ID       int64
	Username string
}

// GetSuperadmin extrae la sesión del contexto (nil si no hay).
func GetSuperadmin(ctx context.Context) *Superadmin {
	if v, ok := ctx.Value(superadminKey{}).(*Superadmin); ok {
		return v
	}
	return nil
}

// IssueSession emite la cookie de sesión HS256 para un superadmin.
func IssueSession(w http.ResponseWriter, cfg SessionConfig, id int64, username string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.FormatInt(id, 10),
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(cfg.TTL).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.TTL.Seconds()),
	})
	return nil
}

// ClearSession invalida la cookie de sesión.
func ClearSession(w http.ResponseWriter, cfg SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// RequireSuperadmin valida la cookie de sesión y deja la identidad en el
// contexto. Sin sesión válida: 401 genérico.
func RequireSuperadmin(cfg SessionConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cfg.CookieName)
			if err != nil || c.Value == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "superadmin session required")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.Secret), nil
			})
			if err != nil || !token.Valid {
				logger.From(r.Context()).Warn("superadmin_session_invalid", logger.Err(err))
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}

			sub, _ := claims["sub"].(string)
			id, _ := strconv.ParseInt(sub, 10, 64)
			username, _ := claims["username"].(string)

			ctx := context.WithValue(r.Context(), superadminKey{}, &Superadmin{ID: id, Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
