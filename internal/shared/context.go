// Package shared holds cross-cutting request context and audit helpers.
package shared

import (
	"context"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/scope"
)

type contextKey int

const authContextKey contextKey = iota

// AuthContext describes the verified bearer token attached to a request.
type AuthContext struct {
	PrincipalID uuid.UUID
	TokenID     uuid.UUID
	Audience    []string
	Scopes      []scope.Scope
}

// HasScope reports whether the token carries at least the given level for a
// policy. A DENY scope never satisfies a requirement.
func (a *AuthContext) HasScope(policyName string, min scope.AccessLevel) bool {
	if a == nil {
		return false
	}
	for _, sc := range a.Scopes {
		if sc.PolicyName != policyName {
			continue
		}
		return sc.Level != scope.Deny && sc.Level.Rank() >= min.Rank()
	}
	return false
}

// ContextWithAuth attaches the auth context to a request context.
func ContextWithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFromContext returns the auth context or nil.
func AuthFromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey).(*AuthContext)
	return auth
}
