package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/principal"
)

type fakePrincipals struct {
	byEmail map[string]principal.Principal
	created []principal.Principal
}

func (f *fakePrincipals) GetByEmail(ctx context.Context, email string) (principal.Principal, error) {
	p, ok := f.byEmail[email]
	if !ok {
		return principal.Principal{}, principal.ErrNotFound
	}
	return p, nil
}

func (f *fakePrincipals) CreateUser(ctx context.Context, email, firstName, lastName string, status principal.Status) (principal.Principal, error) {
	p := principal.Principal{
		Kind:      principal.KindUser,
		Name:      email,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Status:    status,
	}
	f.created = append(f.created, p)
	return p, nil
}

func TestResolveExistingIdentity(t *testing.T) {
	known := principal.Principal{Email: "ada@example.com", Status: principal.StatusApproved}
	svc := NewService(&fakePrincipals{byEmail: map[string]principal.Principal{"ada@example.com": known}})

	p, provisioned, err := svc.Resolve(context.Background(), Assertion{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, provisioned)
	assert.Equal(t, principal.StatusApproved, p.Status)
}

func TestResolveProvisionsPendingUser(t *testing.T) {
	principals := &fakePrincipals{byEmail: map[string]principal.Principal{}}
	svc := NewService(principals)

	p, provisioned, err := svc.Resolve(context.Background(), Assertion{
		Email:     "new@example.com",
		FirstName: "New",
		LastName:  "User",
	})
	require.NoError(t, err)
	assert.True(t, provisioned)
	assert.Equal(t, principal.StatusPending, p.Status)
	require.Len(t, principals.created, 1)
	assert.Equal(t, "New", principals.created[0].FirstName)
}
