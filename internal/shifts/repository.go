package shifts

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftdesk/shiftdesk/internal/platform/db"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// ErrNotFound indicates that the shift does not exist.
var ErrNotFound = fmt.Errorf("shift %w", httpx.ErrNotFound)

// Repository defines persistence operations for shifts.
type Repository interface {
	Get(ctx context.Context, id int64) (Shift, error)
	List(ctx context.Context, f Filter) ([]Shift, error)
	Create(ctx context.Context, s Shift) (Shift, error)
	Update(ctx context.Context, s Shift) (Shift, error)
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

const shiftColumns = `id, employee_id, venue_id, starts_at, ends_at, role, notes, created_at, updated_at`

func scanShift(row pgx.Row) (Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.EmployeeID, &s.VenueID, &s.Start, &s.End, &s.Role, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, ErrNotFound
		}
		return Shift{}, err
	}
	return s, nil
}

// Get fetches a shift by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Shift, error) {
	return scanShift(r.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
}

// List returns shifts matching f ordered by id.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Shift, error) {
	stmt := db.Select(shiftColumns).From("shifts").OrderBy("id")
	if f.EmployeeID != 0 {
		stmt = stmt.Where(sq.Eq{"employee_id": f.EmployeeID})
	}
	if f.VenueID != 0 {
		stmt = stmt.Where(sq.Eq{"venue_id": f.VenueID})
	}
	if !f.From.IsZero() {
		stmt = stmt.Where(sq.GtOrEq{"ends_at": f.From})
	}
	if !f.To.IsZero() {
		stmt = stmt.Where(sq.LtOrEq{"starts_at": f.To})
	}
	return db.CollectRows(ctx, r.pool, stmt, scanShift)
}

// Create inserts a shift.
func (r *PGRepository) Create(ctx context.Context, s Shift) (Shift, error) {
	return scanShift(r.pool.QueryRow(ctx, `INSERT INTO shifts (employee_id, venue_id, starts_at, ends_at, role, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+shiftColumns,
		s.EmployeeID, s.VenueID, s.Start, s.End, s.Role, s.Notes, s.CreatedAt, s.UpdatedAt))
}

// Update replaces the mutable columns of a shift.
func (r *PGRepository) Update(ctx context.Context, s Shift) (Shift, error) {
	return scanShift(r.pool.QueryRow(ctx, `UPDATE shifts SET employee_id = $2, venue_id = $3, starts_at = $4, ends_at = $5, role = $6, notes = $7, updated_at = $8
		WHERE id = $1 RETURNING `+shiftColumns,
		s.ID, s.EmployeeID, s.VenueID, s.Start, s.End, s.Role, s.Notes, s.UpdatedAt))
}

// Delete removes a shift.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
