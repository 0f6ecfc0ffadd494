package permission

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/scope"
)

// ErrNotFound indicates the requested grant does not exist.
var ErrNotFound = errors.New("permission: not found")

// Repository provides PostgreSQL backed persistence for grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GrantDirect upserts a direct grant for a principal. Granting the same
// policy again replaces the mask.
func (r *Repository) GrantDirect(ctx context.Context, principalID, policyID uuid.UUID, level scope.AccessLevel) (uuid.UUID, error) {
	id := uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO direct_permissions (id, principal_id, policy_id, mask)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal_id, policy_id)
		DO UPDATE SET mask = EXCLUDED.mask, issued_at = NOW()
		RETURNING id`, id, principalID, policyID, level).Scan(&id)
	return id, err
}

// GrantGroup upserts a group grant.
func (r *Repository) GrantGroup(ctx context.Context, groupID, policyID uuid.UUID, level scope.AccessLevel) (uuid.UUID, error) {
	id := uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO group_permissions (id, group_id, policy_id, mask)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, policy_id)
		DO UPDATE SET mask = EXCLUDED.mask, issued_at = NOW()
		RETURNING id`, id, groupID, policyID, level).Scan(&id)
	return id, err
}

// RevokeDirect removes a principal's direct grant for a policy.
func (r *Repository) RevokeDirect(ctx context.Context, principalID, policyID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM direct_permissions WHERE principal_id = $1 AND policy_id = $2`, principalID, policyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeGroup removes a group grant for a policy.
func (r *Repository) RevokeGroup(ctx context.Context, groupID, policyID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM group_permissions WHERE group_id = $1 AND policy_id = $2`, groupID, policyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DirectGrants returns the principal's own grants.
func (r *Repository) DirectGrants(ctx context.Context, principalID uuid.UUID) ([]Grant, error) {
	return r.grants(ctx, `
		SELECT t.id, t.policy_id, p.name, t.mask, t.issued_at
		FROM direct_permissions t
		JOIN policies p ON p.id = t.policy_id
		WHERE t.principal_id = $1
		ORDER BY p.name`, principalID)
}

// GroupGrants returns the grants owned by a group.
func (r *Repository) GroupGrants(ctx context.Context, groupID uuid.UUID) ([]Grant, error) {
	return r.grants(ctx, `
		SELECT t.id, t.policy_id, p.name, t.mask, t.issued_at
		FROM group_permissions t
		JOIN policies p ON p.id = t.policy_id
		WHERE t.group_id = $1
		ORDER BY p.name`, groupID)
}

func (r *Repository) grants(ctx context.Context, query string, owner uuid.UUID) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.PolicyID, &g.PolicyName, &g.Level, &g.IssuedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
