package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
)

// AdminCookieName is the cookie carrying the admin session token
const AdminCookieName = "kc_admin"

// AdminVerifier validates admin session tokens
type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, token string) (*services.SessionClaims, error)
}

type adminContextKey struct{}

// AdminFromContext returns the admin claims stored by RequireAdmin or OptionalAdmin
func AdminFromContext(ctx context.Context) (*services.SessionClaims, bool) {
	claims, ok := ctx.Value(adminContextKey{}).(*services.SessionClaims)
	return claims, ok
}

// SessionToken reads the admin token from the cookie, falling back to a bearer header
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(AdminCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// RequireAdmin rejects requests without a valid admin session
func RequireAdmin(verifier AdminVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verifier.VerifyAdmin(r.Context(), SessionToken(r))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin session required"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminContextKey{}, claims)))
		})
	}
}

// OptionalAdmin attaches admin claims when a valid session is present and
// passes every request through
func OptionalAdmin(verifier AdminVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token != "" {
				if claims, err := verifier.VerifyAdmin(r.Context(), token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), adminContextKey{}, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
