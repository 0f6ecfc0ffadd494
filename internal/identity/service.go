// Package identity resolves externally verified identities to principals.
// The upstream gateway performs the actual authentication; by the time a
// request reaches this service the email is trusted.
package identity

import (
	"context"
	"errors"

	"github.com/warden-auth/warden/internal/principal"
)

// PrincipalPort is the subset of principal operations assertion needs.
type PrincipalPort interface {
	GetByEmail(ctx context.Context, email string) (principal.Principal, error)
	CreateUser(ctx context.Context, email, firstName, lastName string, status principal.Status) (principal.Principal, error)
}

// Service maps asserted identities onto principals, provisioning on first
// sight.
type Service struct {
	principals PrincipalPort
}

// NewService builds Service instance.
func NewService(principals PrincipalPort) *Service {
	return &Service{principals: principals}
}

// Assertion carries the verified attributes of an upstream identity.
type Assertion struct {
	Email     string
	FirstName string
	LastName  string
}

// Resolve returns the principal for an asserted identity. Unknown identities
// are provisioned as PENDING users and must be approved before they can
// receive tokens.
func (s *Service) Resolve(ctx context.Context, a Assertion) (principal.Principal, bool, error) {
	p, err := s.principals.GetByEmail(ctx, a.Email)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, principal.ErrNotFound) {
		return principal.Principal{}, false, err
	}
	p, err = s.principals.CreateUser(ctx, a.Email, a.FirstName, a.LastName, principal.StatusPending)
	if err != nil {
		return principal.Principal{}, false, err
	}
	return p, true, nil
}
