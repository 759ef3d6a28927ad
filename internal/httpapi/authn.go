package httpapi

import (
	"net/http"
	"strings"

	"github.com/romulomf/catalog-api/internal/auth"
	"github.com/romulomf/catalog-api/internal/obs"
)

// publicPaths are reachable without a bearer token.
var publicPaths = map[string]bool{
	"/api/auth/login":         true,
	"/api/auth/register":      true,
	"/api/auth/refresh-token": true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
}

// withAuth authenticates bearer tokens on every non-public route and stashes
// the resulting principal in the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// requirePolicy enforces a named policy against the request principal. It
// writes the error response itself and reports whether the caller may proceed.
func (a *API) requirePolicy(w http.ResponseWriter, r *http.Request, policy string) bool {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return false
	}
	if err := a.policies.Require(policy, principal); err != nil {
		obs.ObservePolicyDenial(policy)
		writeAuthError(w, r, err)
		return false
	}
	return true
}
