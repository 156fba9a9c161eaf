package tills

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

// ErrNotFound indicates that the till verification does not exist.
var ErrNotFound = fmt.Errorf("till verification %w", httpx.ErrNotFound)

// Repository defines persistence operations for till verifications.
type Repository interface {
	Get(ctx context.Context, id int64) (Verification, error)
	List(ctx context.Context, f Filter) ([]Verification, error)
	Create(ctx context.Context, v Verification) (Verification, error)
	Update(ctx context.Context, v Verification) (Verification, error)
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

const tillColumns = `id, employee_id, shift_id, venue_id, expected_cents, counted_cents, notes, verified_by, verified_at, created_at, updated_at`

func scanVerification(row pgx.Row) (Verification, error) {
	var v Verification
	err := row.Scan(&v.ID, &v.EmployeeID, &v.ShiftID, &v.VenueID, &v.ExpectedCents, &v.CountedCents, &v.Notes,
		&v.VerifiedBy, &v.VerifiedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Verification{}, ErrNotFound
		}
		return Verification{}, err
	}
	return v, nil
}

// Get fetches a verification by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Verification, error) {
	return scanVerification(r.pool.QueryRow(ctx, `SELECT `+tillColumns+` FROM till_verifications WHERE id = $1`, id))
}

// List returns every verification matching f ordered by id. There is no
// paging: callers get the complete set.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Verification, error) {
	stmt := db.Select(tillColumns).From("till_verifications").OrderBy("id")
	if f.EmployeeID != 0 {
		stmt = stmt.Where(sq.Eq{"employee_id": f.EmployeeID})
	}
	if f.VenueID != 0 {
		stmt = stmt.Where(sq.Eq{"venue_id": f.VenueID})
	}
	if f.ShiftID != 0 {
		stmt = stmt.Where(sq.Eq{"shift_id": f.ShiftID})
	}
	return db.CollectRows(ctx, r.pool, stmt, scanVerification)
}

// Create inserts a verification.
func (r *PGRepository) Create(ctx context.Context, v Verification) (Verification, error) {
	return scanVerification(r.pool.QueryRow(ctx, `INSERT INTO till_verifications
		(employee_id, shift_id, venue_id, expected_cents, counted_cents, notes, verified_by, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+tillColumns,
		v.EmployeeID, v.ShiftID, v.VenueID, v.ExpectedCents, v.CountedCents, v.Notes, v.VerifiedBy, v.VerifiedAt, v.CreatedAt, v.UpdatedAt))
}

// Update replaces the mutable columns of a verification.
func (r *PGRepository) Update(ctx context.Context, v Verification) (Verification, error) {
	return scanVerification(r.pool.QueryRow(ctx, `UPDATE till_verifications SET expected_cents = $2, counted_cents = $3, notes = $4,
		verified_by = $5, verified_at = $6, updated_at = $7 WHERE id = $1 RETURNING `+tillColumns,
		v.ID, v.ExpectedCents, v.CountedCents, v.Notes, v.VerifiedBy, v.VerifiedAt, v.UpdatedAt))
}

// Delete removes a verification.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM till_verifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
