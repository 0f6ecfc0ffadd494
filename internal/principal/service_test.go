package principal

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	byID     map[uuid.UUID]Principal
	hashes   map[string]string // client id -> secret hash
	groups   map[uuid.UUID]Group
	members  map[uuid.UUID]map[uuid.UUID]struct{}
	byEmail  map[string]uuid.UUID
	byName   map[string]uuid.UUID
	byClient map[string]uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:     make(map[uuid.UUID]Principal),
		hashes:   make(map[string]string),
		groups:   make(map[uuid.UUID]Group),
		members:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byEmail:  make(map[string]uuid.UUID),
		byName:   make(map[string]uuid.UUID),
		byClient: make(map[string]uuid.UUID),
	}
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	p, ok := f.byID[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) FindByEmail(ctx context.Context, email string) (Principal, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeRepo) FindByName(ctx context.Context, name string) (Principal, error) {
	id, ok := f.byName[name]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeRepo) Create(ctx context.Context, p Principal, secretHash string) (Principal, error) {
	if _, ok := f.byName[p.Name]; ok {
		return Principal{}, ErrDuplicate
	}
	if p.Email != "" {
		if _, ok := f.byEmail[p.Email]; ok {
			return Principal{}, ErrDuplicate
		}
		f.byEmail[p.Email] = p.ID
	}
	if p.ClientID != "" {
		f.byClient[p.ClientID] = p.ID
		f.hashes[p.ClientID] = secretHash
	}
	f.byID[p.ID] = p
	f.byName[p.Name] = p.ID
	return p, nil
}

func (f *fakeRepo) SecretHash(ctx context.Context, clientID string) (uuid.UUID, string, error) {
	id, ok := f.byClient[clientID]
	if !ok {
		return uuid.Nil, "", ErrNotFound
	}
	return id, f.hashes[clientID], nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Principal, error) {
	p, ok := f.byID[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	p.Status = status
	f.byID[id] = p
	return p, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]Principal, error) {
	var out []Principal
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) CreateGroup(ctx context.Context, g Group) (Group, error) {
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeRepo) FindGroupByID(ctx context.Context, id uuid.UUID) (Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (f *fakeRepo) GroupsOf(ctx context.Context, principalID uuid.UUID) ([]Group, error) {
	var out []Group
	for groupID, members := range f.members {
		if _, ok := members[principalID]; ok {
			out = append(out, f.groups[groupID])
		}
	}
	return out, nil
}

func (f *fakeRepo) MembersOf(ctx context.Context, groupID uuid.UUID) ([]Principal, error) {
	var out []Principal
	for id := range f.members[groupID] {
		out = append(out, f.byID[id])
	}
	return out, nil
}

func (f *fakeRepo) AddMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[uuid.UUID]struct{})
	}
	f.members[groupID][principalID] = struct{}{}
	return nil
}

func (f *fakeRepo) RemoveMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	delete(f.members[groupID], principalID)
	return nil
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	svc := NewService(newFakeRepo())

	p, err := svc.CreateUser(context.Background(), "  Ada@Example.COM ", "Ada", "Lovelace", StatusPending)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "ada@example.com", p.Name)
	assert.Equal(t, KindUser, p.Kind)
	assert.Equal(t, StatusPending, p.Status)

	found, err := svc.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
}

func TestCreateApplicationIssuesCredentials(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	p, secret, err := svc.CreateApplication(context.Background(), "billing-portal")
	require.NoError(t, err)
	assert.Equal(t, KindApplication, p.Kind)
	assert.Equal(t, StatusPending, p.Status)
	assert.NotEmpty(t, p.ClientID)
	require.NotEmpty(t, secret)

	// Only the hash is stored, and it verifies the plaintext secret.
	hash := repo.hashes[p.ClientID]
	assert.NotEqual(t, secret, hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)))
}

func TestAuthenticateApplication(t *testing.T) {
	svc := NewService(newFakeRepo())
	p, secret, err := svc.CreateApplication(context.Background(), "billing-portal")
	require.NoError(t, err)

	got, err := svc.AuthenticateApplication(context.Background(), p.ClientID, secret)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.AuthenticateApplication(context.Background(), p.ClientID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.AuthenticateApplication(context.Background(), "unknown-client", secret)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSetStatus(t *testing.T) {
	svc := NewService(newFakeRepo())
	p, err := svc.CreateUser(context.Background(), "ada@example.com", "", "", StatusPending)
	require.NoError(t, err)

	approved, err := svc.SetStatus(context.Background(), p.ID, StatusApproved)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved())
}

func TestGroupMembership(t *testing.T) {
	svc := NewService(newFakeRepo())
	p, err := svc.CreateUser(context.Background(), "ada@example.com", "", "", StatusApproved)
	require.NoError(t, err)
	g, err := svc.CreateGroup(context.Background(), "editors", "content editors")
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(context.Background(), g.ID, p.ID))

	groups, err := svc.GroupsOf(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "editors", groups[0].Name)

	members, err := svc.MembersOf(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	require.NoError(t, svc.RemoveMember(context.Background(), g.ID, p.ID))
	members, err = svc.MembersOf(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestAddMemberChecksExistence(t *testing.T) {
	svc := NewService(newFakeRepo())
	g, err := svc.CreateGroup(context.Background(), "editors", "")
	require.NoError(t, err)

	err = svc.AddMember(context.Background(), g.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.AddMember(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
