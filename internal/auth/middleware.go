package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/jupiterclapton/relation-service/internal/core/ports"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var userCtxKey = &contextKey{"user_id"}

// Middleware décode le header Authorization et valide le token localement
// avec la clé publique du service de comptes.
func Middleware(verifier ports.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			// Pas de header ? On laisse passer : les handlers authentifiés
			// répondront Unauthenticated en l'absence d'identité.
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(tokenStr)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ForContext retourne l'identité de session, ou "" si non authentifié.
func ForContext(ctx context.Context) string {
	raw, _ := ctx.Value(userCtxKey).(string)
	return raw
}

// WithUser injecte une identité dans le contexte (tests).
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey, userID)
}
