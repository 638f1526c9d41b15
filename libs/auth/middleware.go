package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok && c != nil
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// RequireAuth rejects requests without a valid bearer token with 401.
func RequireAuth(v *Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid Authorization header")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				httpx.LoggerFromContext(r.Context(), nil).Debug("token rejected", "err", err)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets through callers whose role is one of roles. Admins pass every check.
// It must run after RequireAuth.
func RequireRole(roles ...string) httpx.Middleware {
	allowed := map[string]struct{}{RoleAdmin: {}}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "role "+claims.Role+" may not perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
