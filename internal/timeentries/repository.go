package timeentries

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

// ErrNotFound indicates that the time entry does not exist.
var ErrNotFound = fmt.Errorf("time entry %w", httpx.ErrNotFound)

// Repository defines persistence operations for time entries.
type Repository interface {
	Get(ctx context.Context, id int64) (TimeEntry, error)
	List(ctx context.Context, f Filter) ([]TimeEntry, error)
	Create(ctx context.Context, e TimeEntry) (TimeEntry, error)
	Update(ctx context.Context, e TimeEntry) (TimeEntry, error)
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

const entryColumns = `id, employee_id, shift_id, clock_in, clock_out, break_minutes, notes, approved_by, approved_at, created_at, updated_at`

func scanEntry(row pgx.Row) (TimeEntry, error) {
	var e TimeEntry
	err := row.Scan(&e.ID, &e.EmployeeID, &e.ShiftID, &e.ClockIn, &e.ClockOut, &e.BreakMinutes, &e.Notes,
		&e.ApprovedBy, &e.ApprovedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, ErrNotFound
		}
		return TimeEntry{}, err
	}
	return e, nil
}

// Get fetches a time entry by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (TimeEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = $1`, id))
}

// List returns entries matching f ordered by id.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]TimeEntry, error) {
	if f.ShiftIDs != nil && len(f.ShiftIDs) == 0 {
		return nil, nil
	}
	stmt := db.Select(entryColumns).From("time_entries").OrderBy("id")
	if f.EmployeeID != 0 {
		stmt = stmt.Where(sq.Eq{"employee_id": f.EmployeeID})
	}
	if f.ShiftID != 0 {
		stmt = stmt.Where(sq.Eq{"shift_id": f.ShiftID})
	}
	if f.ShiftIDs != nil {
		stmt = stmt.Where(sq.Eq{"shift_id": f.ShiftIDs})
	}
	return db.CollectRows(ctx, r.pool, stmt, scanEntry)
}

// Create inserts a time entry.
func (r *PGRepository) Create(ctx context.Context, e TimeEntry) (TimeEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `INSERT INTO time_entries
		(employee_id, shift_id, clock_in, clock_out, break_minutes, notes, approved_by, approved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+entryColumns,
		e.EmployeeID, e.ShiftID, e.ClockIn, e.ClockOut, e.BreakMinutes, e.Notes, e.ApprovedBy, e.ApprovedAt, e.CreatedAt, e.UpdatedAt))
}

// Update replaces the mutable columns of a time entry.
func (r *PGRepository) Update(ctx context.Context, e TimeEntry) (TimeEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `UPDATE time_entries SET clock_in = $2, clock_out = $3, break_minutes = $4, notes = $5,
		approved_by = $6, approved_at = $7, updated_at = $8 WHERE id = $1 RETURNING `+entryColumns,
		e.ID, e.ClockIn, e.ClockOut, e.BreakMinutes, e.Notes, e.ApprovedBy, e.ApprovedAt, e.UpdatedAt))
}

// Delete removes a time entry.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
