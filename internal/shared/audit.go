package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded by the services.
const (
	AuditUserCreated       = "user.created"
	AuditUserDeleted       = "user.deleted"
	AuditRoleChanged       = "user.role_changed"
	AuditGrantsChanged     = "user.permissions_changed"
	AuditVenuesChanged     = "user.venues_changed"
	AuditTillVerified      = "till.verified"
	AuditTimeEntryApproved = "time_entry.approved"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder persists audit records.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

func validateAudit(log AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if err := validateAudit(log); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// PurgeBefore deletes audit records that occurred before cutoff and returns
// how many were removed.
func (l *AuditLogger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil {
		return 0, errors.New("audit logger not initialised")
	}
	tag, err := l.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SlogAuditRecorder writes audit records to a structured logger. It backs the
// in-memory storage driver.
type SlogAuditRecorder struct {
	Logger *slog.Logger
}

// Record logs the entry at info level.
func (r SlogAuditRecorder) Record(ctx context.Context, log AuditLog) error {
	if err := validateAudit(log); err != nil {
		return err
	}
	if r.Logger == nil {
		return nil
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	r.Logger.InfoContext(ctx, "audit",
		slog.Int64("actor_id", log.ActorID),
		slog.String("action", log.Action),
		slog.String("entity", log.Entity),
		slog.String("entity_id", log.EntityID),
		slog.Any("meta", log.Meta),
		slog.Time("at", at),
	)
	return nil
}

var (
	_ AuditRecorder = (*AuditLogger)(nil)
	_ AuditRecorder = SlogAuditRecorder{}
)
