package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/yuvalr-dev/librarium/internal/core"
)

type contextKey string

const callerKey contextKey = "caller"

// RequireAuth validates the bearer credential on every request and
// attaches the resolved caller identity to the request context.
func RequireAuth(resolver core.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}

			credential := strings.TrimPrefix(authz, "Bearer ")
			caller, err := resolver.ResolveCallerIdentity(r.Context(), credential)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom returns the identity attached by RequireAuth, or nil.
func CallerFrom(ctx context.Context) *core.Identity {
	caller, _ := ctx.Value(callerKey).(*core.Identity)
	return caller
}
