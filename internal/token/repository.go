package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IssuedToken is a bookkeeping row describing a token this service signed.
// The authoritative revocation state for introspection lives in Redis; these
// rows back token listing and the expiry sweep.
type IssuedToken struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  []string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Repository provides PostgreSQL backed token bookkeeping.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record stores a bookkeeping row for a freshly issued token.
func (r *Repository) Record(ctx context.Context, t IssuedToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO issued_tokens (id, subject, audience, scopes, issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		t.ID, t.Subject, t.Audience, t.Scopes, t.IssuedAt, t.ExpiresAt)
	return err
}

// MarkRevoked flags a bookkeeping row. Unknown or already-revoked rows are
// left untouched without error, mirroring the idempotent revoke contract.
func (r *Repository) MarkRevoked(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE issued_tokens SET revoked = TRUE WHERE id = $1`, id)
	return err
}

// ListBySubject returns tokens issued to a principal, newest first.
func (r *Repository) ListBySubject(ctx context.Context, subject uuid.UUID) ([]IssuedToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject, audience, scopes, issued_at, expires_at, revoked
		FROM issued_tokens WHERE subject = $1 ORDER BY issued_at DESC`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []IssuedToken
	for rows.Next() {
		var t IssuedToken
		if err := rows.Scan(&t.ID, &t.Subject, &t.Audience, &t.Scopes, &t.IssuedAt, &t.ExpiresAt, &t.Revoked); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteExpired purges bookkeeping rows whose tokens expired before the
// cutoff and reports how many rows were removed.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM issued_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
