package internal

import (
	"context"
	"net/http"
	"strings"
)

type claimsKey struct{}

// Operator returns who authenticated the request, or "" on public routes.
func Operator(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey{}).(*OperatorClaims); ok {
		return c.Operator
	}
	return ""
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AdminKeyHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireScope rejects requests without a bearer token (401) or whose token
// lacks scope (403).
func RequireScope(jm *JWTManager, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				WriteError(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}
			claims, err := jm.Verify(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if !claims.Allows(scope) {
				WriteError(w, http.StatusForbidden, "Token lacks the "+scope+" scope")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
