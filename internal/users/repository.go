package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/db"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// ErrNotFound indicates that the requested user does not exist.
var ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)

// Repository defines persistence operations for users.
type Repository interface {
	Get(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, role, permissions, assigned_venues, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		role  string
		perms []string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &perms, &u.AssignedVenues, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role = authz.Role(role)
	u.Permissions = make([]authz.Permission, len(perms))
	for i, p := range perms {
		u.Permissions[i] = authz.Permission(p)
	}
	return u, nil
}

func permissionStrings(perms []authz.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func venueIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// Get fetches a user by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

// List returns all users ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	return db.CollectRows(ctx, r.pool, db.Select(userColumns).From("users").OrderBy("id"), scanUser)
}

// Create inserts a user and returns it with its id.
func (r *PGRepository) Create(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role, permissions, assigned_venues, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+userColumns,
		u.Email, u.Name, u.PasswordHash, string(u.Role), permissionStrings(u.Permissions), venueIDs(u.AssignedVenues), u.IsActive, u.CreatedAt, u.UpdatedAt)
	created, err := scanUser(row)
	return created, mapWriteError(err)
}

// Update replaces the mutable columns of a user.
func (r *PGRepository) Update(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET email = $2, name = $3, password_hash = $4, role = $5, permissions = $6,
		assigned_venues = $7, is_active = $8, updated_at = $9 WHERE id = $1 RETURNING `+userColumns,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), permissionStrings(u.Permissions), venueIDs(u.AssignedVenues), u.IsActive, u.UpdatedAt)
	updated, err := scanUser(row)
	return updated, mapWriteError(err)
}

// Delete removes a user by id.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
