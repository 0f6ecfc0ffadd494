package token

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/principal"
	"github.com/warden-auth/warden/internal/scope"
)

type fakePrincipals struct {
	byID map[uuid.UUID]principal.Principal
}

func (f *fakePrincipals) Get(ctx context.Context, id uuid.UUID) (principal.Principal, error) {
	p, ok := f.byID[id]
	if !ok {
		return principal.Principal{}, principal.ErrNotFound
	}
	return p, nil
}

type fakePermissions struct {
	effective map[uuid.UUID]map[string]scope.AccessLevel
}

func (f *fakePermissions) EffectiveFor(ctx context.Context, principalID uuid.UUID) (map[string]scope.AccessLevel, error) {
	return f.effective[principalID], nil
}

type memStore struct {
	issued  map[uuid.UUID]bool
	revoked map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{issued: make(map[uuid.UUID]bool), revoked: make(map[uuid.UUID]bool)}
}

func (m *memStore) MarkIssued(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) error {
	if expiresAt.After(now) {
		m.issued[id] = true
	}
	return nil
}

func (m *memStore) MarkRevoked(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) error {
	if expiresAt.After(now) {
		m.revoked[id] = true
	}
	return nil
}

func (m *memStore) IsRevoked(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.revoked[id], nil
}

type memBooks struct {
	records []IssuedToken
	revoked map[uuid.UUID]bool
}

func newMemBooks() *memBooks {
	return &memBooks{revoked: make(map[uuid.UUID]bool)}
}

func (m *memBooks) Record(ctx context.Context, t IssuedToken) error {
	m.records = append(m.records, t)
	return nil
}

func (m *memBooks) MarkRevoked(ctx context.Context, id uuid.UUID) error {
	m.revoked[id] = true
	return nil
}

func (m *memBooks) ListBySubject(ctx context.Context, subject uuid.UUID) ([]IssuedToken, error) {
	var out []IssuedToken
	for _, t := range m.records {
		if t.Subject == subject {
			out = append(out, t)
		}
	}
	return out, nil
}

type fixture struct {
	service    *Service
	store      *memStore
	books      *memBooks
	principals *fakePrincipals
	perms      *fakePermissions
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		store:      newMemStore(),
		books:      newMemBooks(),
		principals: &fakePrincipals{byID: make(map[uuid.UUID]principal.Principal)},
		perms:      &fakePermissions{effective: make(map[uuid.UUID]map[string]scope.AccessLevel)},
		now:        now,
	}
	f.service = NewService(ServiceConfig{
		Codec:       testCodec(t),
		Store:       f.store,
		Books:       f.books,
		Principals:  f.principals,
		Permissions: f.perms,
		TTL:         time.Hour,
		Now:         func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) addPrincipal(kind principal.Kind, status principal.Status, name string) uuid.UUID {
	id := uuid.New()
	f.principals.byID[id] = principal.Principal{ID: id, Kind: kind, Name: name, Status: status}
	return id
}

func (f *fixture) grant(id uuid.UUID, levels map[string]scope.AccessLevel) {
	f.perms.effective[id] = levels
}

func TestIssueDefaultsToFullEffectiveSet(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{
		"collab.song":  scope.Write,
		"collab.album": scope.Read,
	})

	issued, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"collab.album.READ", "collab.song.WRITE"}, scope.FormatAll(issued.Payload.Scopes))
	assert.Equal(t, []string{"ada@example.com"}, issued.Payload.Audience)
	assert.Equal(t, int64(3600), issued.SecondsUntilExpiry(f.now))
	assert.True(t, f.store.issued[issued.Payload.TokenID])
	require.Len(t, f.books.records, 1)
}

func TestIssueRequestedSubset(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{
		"collab.song":  scope.Write,
		"collab.album": scope.Read,
	})

	issued, err := f.service.Issue(context.Background(), user, []string{"collab.song.READ"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"collab.song.READ"}, scope.FormatAll(issued.Payload.Scopes))
}

func TestIssueRejectsEscalation(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})

	_, err := f.service.Issue(context.Background(), user, []string{"collab.song.WRITE"}, nil)
	var invalid *InvalidScopeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "collab.song.WRITE", invalid.Scope)
}

func TestIssueRejectsDeniedPolicy(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Deny})

	_, err := f.service.Issue(context.Background(), user, []string{"collab.song.READ"}, nil)
	var invalid *InvalidScopeError
	require.ErrorAs(t, err, &invalid)
}

func TestIssueRejectsUnknownScope(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Write})

	_, err := f.service.Issue(context.Background(), user, []string{"collab.video.READ"}, nil)
	var invalid *InvalidScopeError
	require.ErrorAs(t, err, &invalid)
}

func TestIssueRequiresApproval(t *testing.T) {
	f := newFixture(t)
	for _, status := range []principal.Status{principal.StatusPending, principal.StatusRejected, principal.StatusDisabled} {
		user := f.addPrincipal(principal.KindUser, status, "pending@example.com")
		_, err := f.service.Issue(context.Background(), user, nil, nil)
		var notApproved *PrincipalNotApprovedError
		require.ErrorAs(t, err, &notApproved, "status %s", status)
	}
}

func TestIssueUnknownPrincipal(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Issue(context.Background(), uuid.New(), nil, nil)
	var notFound *PrincipalNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestIssueAudienceFromApplications(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})
	appID := f.addPrincipal(principal.KindApplication, principal.StatusApproved, "billing-portal")

	issued, err := f.service.Issue(context.Background(), user, nil, []uuid.UUID{appID})
	require.NoError(t, err)
	assert.Equal(t, []string{"billing-portal"}, issued.Payload.Audience)
}

func TestIssueRejectsUnapprovedAudience(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})
	appID := f.addPrincipal(principal.KindApplication, principal.StatusPending, "shady-app")

	_, err := f.service.Issue(context.Background(), user, nil, []uuid.UUID{appID})
	var notApproved *PrincipalNotApprovedError
	require.ErrorAs(t, err, &notApproved)
}

func TestCheckByApprovedApplication(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})
	appID := f.addPrincipal(principal.KindApplication, principal.StatusApproved, "billing-portal")
	f.grant(appID, map[string]scope.AccessLevel{"collab.song": scope.Read})

	userToken, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)
	appToken, err := f.service.Issue(context.Background(), appID, nil, nil)
	require.NoError(t, err)

	result, err := f.service.Check(context.Background(), appToken.Token, userToken.Token)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, user, result.Payload.Subject)
	assert.Equal(t, []string{"collab.song.READ"}, scope.FormatAll(result.Payload.Scopes))
}

func TestCheckSelf(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})

	issued, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)

	result, err := f.service.Check(context.Background(), issued.Token, issued.Token)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCheckRejectsForeignUserCaller(t *testing.T) {
	f := newFixture(t)
	ada := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	bob := f.addPrincipal(principal.KindUser, principal.StatusApproved, "bob@example.com")
	f.grant(ada, map[string]scope.AccessLevel{"collab.song": scope.Read})
	f.grant(bob, map[string]scope.AccessLevel{"collab.song": scope.Read})

	adaToken, err := f.service.Issue(context.Background(), ada, nil, nil)
	require.NoError(t, err)
	bobToken, err := f.service.Issue(context.Background(), bob, nil, nil)
	require.NoError(t, err)

	_, err = f.service.Check(context.Background(), bobToken.Token, adaToken.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckRevokedCandidateIsInvalidNotError(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})
	appID := f.addPrincipal(principal.KindApplication, principal.StatusApproved, "billing-portal")
	f.grant(appID, map[string]scope.AccessLevel{"collab.song": scope.Read})

	userToken, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)
	appToken, err := f.service.Issue(context.Background(), appID, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(context.Background(), user, userToken.Token))

	result, err := f.service.Check(context.Background(), appToken.Token, userToken.Token)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestCheckExpiredCandidateIsInvalidNotError(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})
	appID := f.addPrincipal(principal.KindApplication, principal.StatusApproved, "billing-portal")
	f.grant(appID, map[string]scope.AccessLevel{"collab.song": scope.Read})

	userToken, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)

	f.now = f.now.Add(90 * time.Minute)
	appToken, err := f.service.Issue(context.Background(), appID, nil, nil)
	require.NoError(t, err)

	result, err := f.service.Check(context.Background(), appToken.Token, userToken.Token)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, user, result.Payload.Subject)
}

func TestCheckRejectsRevokedCaller(t *testing.T) {
	f := newFixture(t)
	appID := f.addPrincipal(principal.KindApplication, principal.StatusApproved, "billing-portal")
	f.grant(appID, map[string]scope.AccessLevel{"collab.song": scope.Read})

	appToken, err := f.service.Issue(context.Background(), appID, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.service.Revoke(context.Background(), appID, appToken.Token))

	_, err = f.service.Check(context.Background(), appToken.Token, appToken.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckRejectsGarbageCaller(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Check(context.Background(), "garbage", "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRevokeBySubject(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})

	issued, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(context.Background(), user, issued.Token))
	assert.True(t, f.store.revoked[issued.Payload.TokenID])
	assert.True(t, f.books.revoked[issued.Payload.TokenID])

	// Revoking again stays silent.
	require.NoError(t, f.service.Revoke(context.Background(), user, issued.Token))
}

func TestRevokeForeignTokenForbidden(t *testing.T) {
	f := newFixture(t)
	ada := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	bob := f.addPrincipal(principal.KindUser, principal.StatusApproved, "bob@example.com")
	f.grant(ada, map[string]scope.AccessLevel{"collab.song": scope.Read})

	issued, err := f.service.Issue(context.Background(), ada, nil, nil)
	require.NoError(t, err)

	err = f.service.Revoke(context.Background(), bob, issued.Token)
	var forbidden *ForbiddenRevocationError
	require.ErrorAs(t, err, &forbidden)
	assert.False(t, f.store.revoked[issued.Payload.TokenID])
}

func TestRevokeExpiredTokenSucceedsSilently(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})

	issued, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	require.NoError(t, f.service.Revoke(context.Background(), user, issued.Token))
	assert.False(t, f.store.revoked[issued.Payload.TokenID])
	assert.True(t, f.books.revoked[issued.Payload.TokenID])
}

func TestValidateAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Write})

	issued, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)

	assert.True(t, f.service.Validate(context.Background(), issued.Token))
	assert.False(t, f.service.Validate(context.Background(), "garbage"))

	auth, err := f.service.Authenticate(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user, auth.PrincipalID)
	assert.True(t, auth.HasScope("collab.song", scope.Read))
	assert.False(t, auth.HasScope("collab.album", scope.Read))

	require.NoError(t, f.service.Revoke(context.Background(), user, issued.Token))
	assert.False(t, f.service.Validate(context.Background(), issued.Token))
	_, err = f.service.Authenticate(context.Background(), issued.Token)
	assert.Error(t, err)
}

func TestListBySubject(t *testing.T) {
	f := newFixture(t)
	user := f.addPrincipal(principal.KindUser, principal.StatusApproved, "ada@example.com")
	f.grant(user, map[string]scope.AccessLevel{"collab.song": scope.Read})

	first, err := f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)
	_, err = f.service.Issue(context.Background(), user, nil, nil)
	require.NoError(t, err)

	tokens, err := f.service.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, first.Payload.TokenID, tokens[0].ID)
}
