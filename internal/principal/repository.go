package principal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested principal or group does not exist.
var ErrNotFound = errors.New("principal: not found")

// ErrDuplicate indicates a uniqueness conflict (email, client id, group name).
var ErrDuplicate = errors.New("principal: duplicate")

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const principalColumns = `id, kind, name, email, first_name, last_name, client_id, status, created_at, updated_at`

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.Email, &p.FirstName, &p.LastName, &p.ClientID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, ErrNotFound
	}
	if err != nil {
		return Principal{}, err
	}
	return p, nil
}

// FindByID fetches a principal by identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	return scanPrincipal(row)
}

// FindByEmail fetches a user principal by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE email = $1`, email)
	return scanPrincipal(row)
}

// FindByName fetches a principal by display name.
func (r *Repository) FindByName(ctx context.Context, name string) (Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE name = $1`, name)
	return scanPrincipal(row)
}

// Create inserts a new principal. The caller supplies the identifier.
func (r *Repository) Create(ctx context.Context, p Principal, secretHash string) (Principal, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO principals (id, kind, name, email, first_name, last_name, client_id, client_secret_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+principalColumns,
		p.ID, p.Kind, p.Name, p.Email, p.FirstName, p.LastName, p.ClientID, secretHash, p.Status)
	created, err := scanPrincipal(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Principal{}, ErrDuplicate
		}
		return Principal{}, err
	}
	return created, nil
}

// SecretHash returns the stored client secret hash for an application.
func (r *Repository) SecretHash(ctx context.Context, clientID string) (uuid.UUID, string, error) {
	var id uuid.UUID
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT id, client_secret_hash FROM principals WHERE client_id = $1 AND kind = 'APPLICATION'`, clientID).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", ErrNotFound
	}
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, hash, nil
}

// UpdateStatus transitions a principal's approval status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Principal, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE principals SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING `+principalColumns, id, status)
	return scanPrincipal(row)
}

// List returns all principals ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+principalColumns+` FROM principals ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var principals []Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &p.Email, &p.FirstName, &p.LastName, &p.ClientID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

const groupColumns = `id, name, description, created_at, updated_at`

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(ctx context.Context, g Group) (Group, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO groups (id, name, description) VALUES ($1, $2, $3)
		RETURNING `+groupColumns, g.ID, g.Name, g.Description)
	created, err := scanGroup(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Group{}, ErrDuplicate
		}
		return Group{}, err
	}
	return created, nil
}

// FindGroupByID fetches a group by identifier.
func (r *Repository) FindGroupByID(ctx context.Context, id uuid.UUID) (Group, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	return scanGroup(row)
}

// GroupsOf returns every group the principal is a member of.
func (r *Repository) GroupsOf(ctx context.Context, principalID uuid.UUID) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.principal_id = $1
		ORDER BY g.name`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// MembersOf returns every principal belonging to the group.
func (r *Repository) MembersOf(ctx context.Context, groupID uuid.UUID) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.kind, p.name, p.email, p.first_name, p.last_name, p.client_id, p.status, p.created_at, p.updated_at
		FROM principals p
		JOIN group_members m ON m.principal_id = p.id
		WHERE m.group_id = $1
		ORDER BY p.name`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &p.Email, &p.FirstName, &p.LastName, &p.ClientID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, p)
	}
	return members, rows.Err()
}

// AddMember adds a principal to a group. Adding twice is a no-op.
func (r *Repository) AddMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, principal_id) VALUES ($1, $2)
		ON CONFLICT (group_id, principal_id) DO NOTHING`, groupID, principalID)
	return err
}

// RemoveMember removes a principal from a group.
func (r *Repository) RemoveMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND principal_id = $2`, groupID, principalID)
	return err
}
