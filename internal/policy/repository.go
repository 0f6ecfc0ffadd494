package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested policy does not exist.
var ErrNotFound = errors.New("policy: not found")

// ErrDuplicateName indicates a policy with the same name already exists.
var ErrDuplicateName = errors.New("policy: duplicate name")

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, name, owner_id, created_at, updated_at`

func scan(row pgx.Row) (Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, ErrNotFound
	}
	if err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Create inserts a new policy. Name uniqueness is enforced by the database.
func (r *Repository) Create(ctx context.Context, p Policy) (Policy, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO policies (id, name, owner_id) VALUES ($1, $2, $3)
		RETURNING `+columns, p.ID, p.Name, p.OwnerID)
	created, err := scan(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Policy{}, ErrDuplicateName
		}
		return Policy{}, err
	}
	return created, nil
}

// FindByID fetches a policy by identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (Policy, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM policies WHERE id = $1`, id))
}

// FindByName fetches a policy by its unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (Policy, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM policies WHERE name = $1`, name))
}

// List returns all policies ordered by name.
func (r *Repository) List(ctx context.Context) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM policies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var policies []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// Delete removes a policy. Grants referencing it cascade at the database
// level. Returns ErrNotFound if nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
