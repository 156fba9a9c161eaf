package venues

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftdesk/shiftdesk/internal/platform/db"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// ErrNotFound indicates that the venue does not exist.
var ErrNotFound = fmt.Errorf("venue %w", httpx.ErrNotFound)

// Repository defines persistence operations for venues.
type Repository interface {
	Get(ctx context.Context, id int64) (Venue, error)
	List(ctx context.Context) ([]Venue, error)
	Create(ctx context.Context, v Venue) (Venue, error)
	Update(ctx context.Context, v Venue) (Venue, error)
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

const venueColumns = `id, name, address, timezone, is_active, created_at, updated_at`

func scanVenue(row pgx.Row) (Venue, error) {
	var v Venue
	if err := row.Scan(&v.ID, &v.Name, &v.Address, &v.Timezone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Venue{}, ErrNotFound
		}
		return Venue{}, err
	}
	return v, nil
}

// Get fetches a venue by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Venue, error) {
	return scanVenue(r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
}

// List returns all venues ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Venue, error) {
	return db.CollectRows(ctx, r.pool, db.Select(venueColumns).From("venues").OrderBy("name", "id"), scanVenue)
}

// Create inserts a venue.
func (r *PGRepository) Create(ctx context.Context, v Venue) (Venue, error) {
	return scanVenue(r.pool.QueryRow(ctx, `INSERT INTO venues (name, address, timezone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+venueColumns,
		v.Name, v.Address, v.Timezone, v.IsActive, v.CreatedAt, v.UpdatedAt))
}

// Update replaces the mutable columns of a venue.
func (r *PGRepository) Update(ctx context.Context, v Venue) (Venue, error) {
	return scanVenue(r.pool.QueryRow(ctx, `UPDATE venues SET name = $2, address = $3, timezone = $4, is_active = $5, updated_at = $6
		WHERE id = $1 RETURNING `+venueColumns,
		v.ID, v.Name, v.Address, v.Timezone, v.IsActive, v.UpdatedAt))
}

// Delete removes a venue and drops it from every user's assignments.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM venues WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE users SET assigned_venues = array_remove(assigned_venues, $1), updated_at = NOW()
			WHERE $1 = ANY(assigned_venues)`, id)
		return err
	})
}

var _ Repository = (*PGRepository)(nil)
