package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rmacedo/patrol-ops/auth"
	"github.com/rmacedo/patrol-ops/models"
)

type contextKey struct{}

var claimsKey contextKey

// Authenticate verifies the bearer token on every request of the
// authenticated subrouter and stashes the claims on the request context.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := h.tokens.Verify(token)
		if claims == nil {
			respondError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

// requireManager gates roster-mutating endpoints to manager accounts.
func requireManager(w http.ResponseWriter, r *http.Request) bool {
	claims := claimsFrom(r)
	if claims == nil || claims.Role != models.TypeManager {
		respondError(w, http.StatusForbidden, "manager role required")
		return false
	}
	return true
}
