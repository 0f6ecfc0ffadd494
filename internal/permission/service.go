package permission

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/warden-auth/warden/internal/principal"
	"github.com/warden-auth/warden/internal/scope"
)

// RepositoryPort defines data access methods for grants.
type RepositoryPort interface {
	GrantDirect(ctx context.Context, principalID, policyID uuid.UUID, level scope.AccessLevel) (uuid.UUID, error)
	GrantGroup(ctx context.Context, groupID, policyID uuid.UUID, level scope.AccessLevel) (uuid.UUID, error)
	RevokeDirect(ctx context.Context, principalID, policyID uuid.UUID) error
	RevokeGroup(ctx context.Context, groupID, policyID uuid.UUID) error
	DirectGrants(ctx context.Context, principalID uuid.UUID) ([]Grant, error)
	GroupGrants(ctx context.Context, groupID uuid.UUID) ([]Grant, error)
}

// MembershipPort resolves group membership for a principal.
type MembershipPort interface {
	GroupsOf(ctx context.Context, principalID uuid.UUID) ([]principal.Group, error)
}

// Service orchestrates grant management and effective permission resolution.
type Service struct {
	repo       RepositoryPort
	membership MembershipPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, membership MembershipPort) *Service {
	return &Service{repo: repo, membership: membership}
}

// GrantDirect grants a policy to a principal at the given level.
func (s *Service) GrantDirect(ctx context.Context, principalID, policyID uuid.UUID, level scope.AccessLevel) (uuid.UUID, error) {
	return s.repo.GrantDirect(ctx, principalID, policyID, level)
}

// GrantGroup grants a policy to every member of a group at the given level.
func (s *Service) GrantGroup(ctx context.Context, groupID, policyID uuid.UUID, level scope.AccessLevel) (uuid.UUID, error) {
	return s.repo.GrantGroup(ctx, groupID, policyID, level)
}

// RevokeDirect removes a direct grant.
func (s *Service) RevokeDirect(ctx context.Context, principalID, policyID uuid.UUID) error {
	return s.repo.RevokeDirect(ctx, principalID, policyID)
}

// RevokeGroup removes a group grant.
func (s *Service) RevokeGroup(ctx context.Context, groupID, policyID uuid.UUID) error {
	return s.repo.RevokeGroup(ctx, groupID, policyID)
}

// DirectGrants lists a principal's own grants.
func (s *Service) DirectGrants(ctx context.Context, principalID uuid.UUID) ([]Grant, error) {
	return s.repo.DirectGrants(ctx, principalID)
}

// GroupGrants lists a group's grants.
func (s *Service) GroupGrants(ctx context.Context, groupID uuid.UUID) ([]Grant, error) {
	return s.repo.GroupGrants(ctx, groupID)
}

// EffectiveFor resolves the principal's effective permission set. Direct and
// per-group grants are fetched concurrently and merged with the deny-wins
// rule. The result reflects membership and grants as of this call; it is
// never cached.
func (s *Service) EffectiveFor(ctx context.Context, principalID uuid.UUID) (map[string]scope.AccessLevel, error) {
	groups, err := s.membership.GroupsOf(ctx, principalID)
	if err != nil {
		return nil, err
	}

	var direct []Grant
	groupGrants := make([][]Grant, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		direct, err = s.repo.DirectGrants(gctx, principalID)
		return err
	})
	for i, grp := range groups {
		g.Go(func() error {
			var err error
			groupGrants[i], err = s.repo.GroupGrants(gctx, grp.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Effective(direct, groupGrants), nil
}
