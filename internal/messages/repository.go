package messages

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

// ErrNotFound indicates that the message does not exist.
var ErrNotFound = fmt.Errorf("message %w", httpx.ErrNotFound)

// Repository defines persistence operations for messages.
type Repository interface {
	Get(ctx context.Context, id int64) (Message, error)
	List(ctx context.Context, f Filter) ([]Message, error)
	Create(ctx context.Context, m Message) (Message, error)
	MarkRead(ctx context.Context, m Message) (Message, error)
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

const messageColumns = `id, sender_id, recipient_id, venue_id, body, read_at, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.VenueID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}

// Get fetches a message by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// List returns messages matching f ordered by id.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Message, error) {
	stmt := db.Select(messageColumns).From("messages").OrderBy("id")
	if f.SenderID != 0 {
		stmt = stmt.Where(sq.Eq{"sender_id": f.SenderID})
	}
	if f.RecipientID != 0 {
		stmt = stmt.Where(sq.Eq{"recipient_id": f.RecipientID})
	}
	if f.VenueID != 0 {
		stmt = stmt.Where(sq.Eq{"venue_id": f.VenueID})
	}
	if f.BroadcastsOnly {
		stmt = stmt.Where(sq.NotEq{"venue_id": nil})
	}
	return db.CollectRows(ctx, r.pool, stmt, scanMessage)
}

// Create inserts a message.
func (r *PGRepository) Create(ctx context.Context, m Message) (Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `INSERT INTO messages (sender_id, recipient_id, venue_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		m.SenderID, m.RecipientID, m.VenueID, m.Body, m.CreatedAt))
}

// MarkRead stores the read timestamp of m.
func (r *PGRepository) MarkRead(ctx context.Context, m Message) (Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `UPDATE messages SET read_at = $2 WHERE id = $1 RETURNING `+messageColumns, m.ID, m.ReadAt))
}

// Delete removes a message.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
