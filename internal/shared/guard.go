package shared

import (
	"log/slog"
	"net/http"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/scope"
)

// Guard wires scope-based authorization helpers for HTTP handlers.
// Decisions are made against the scopes encoded in the caller's token.
type Guard struct {
	Logger *slog.Logger
}

// Require ensures the caller's token carries at least the given level for
// the policy. A DENY scope in the token never satisfies the requirement.
func (g Guard) Require(policyName string, min scope.AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := AuthFromContext(r.Context())
			if auth == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !auth.HasScope(policyName, min) {
				if g.Logger != nil {
					g.Logger.Warn("scope check failed",
						slog.String("policy", policyName),
						slog.String("principal", auth.PrincipalID.String()))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
