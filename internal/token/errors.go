package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/principal"
)

// ErrUnauthorized indicates the introspection caller does not hold a valid
// token with sufficient privilege.
var ErrUnauthorized = errors.New("token: caller not authorized")

// SignatureInvalidError reports a token whose signature does not verify
// against the service public key.
type SignatureInvalidError struct{}

func (e *SignatureInvalidError) Error() string {
	return "token: signature verification failed"
}

// MalformedTokenError reports a token whose structure cannot be read,
// including tokens embedding corrupt scope strings.
type MalformedTokenError struct {
	Reason string
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("token: malformed token: %s", e.Reason)
}

// ExpiredTokenError reports a token outside its validity window.
type ExpiredTokenError struct {
	ExpiresAt time.Time
}

func (e *ExpiredTokenError) Error() string {
	return fmt.Sprintf("token: expired at %s", e.ExpiresAt.UTC().Format(time.RFC3339))
}

// PrincipalNotFoundError reports an issuance request for an unknown principal.
type PrincipalNotFoundError struct {
	ID uuid.UUID
}

func (e *PrincipalNotFoundError) Error() string {
	return fmt.Sprintf("token: principal %s not found", e.ID)
}

// PrincipalNotApprovedError reports an issuance request for a principal whose
// status forbids tokens.
type PrincipalNotApprovedError struct {
	ID     uuid.UUID
	Status principal.Status
}

func (e *PrincipalNotApprovedError) Error() string {
	return fmt.Sprintf("token: principal %s has status %s, only approved principals receive tokens", e.ID, e.Status)
}

// InvalidScopeError names the first requested scope missing from, or
// exceeding, the principal's effective permission set.
type InvalidScopeError struct {
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("token: requested scope %q exceeds effective permissions", e.Scope)
}

// ForbiddenRevocationError reports a revocation attempt by a principal that
// does not own the token.
type ForbiddenRevocationError struct {
	Subject uuid.UUID
}

func (e *ForbiddenRevocationError) Error() string {
	return fmt.Sprintf("token: principal %s may only revoke its own tokens", e.Subject)
}
