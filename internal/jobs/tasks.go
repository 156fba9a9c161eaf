package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every task is placed on.
	QueueDefault = "default"
	// TaskAuditPurge removes audit records past their retention window.
	TaskAuditPurge = "audit:purge"
)

// DefaultRetentionDays applies when a purge payload names no window.
const DefaultRetentionDays = 365

// AuditPurgePayload configures one purge run.
type AuditPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(payload AuditPurgePayload) (*asynq.Task, error) {
	if payload.RetentionDays < 0 {
		return nil, fmt.Errorf("jobs: negative retention %d", payload.RetentionDays)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data), nil
}

// AuditPurger deletes audit records older than a cutoff.
type AuditPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPurgeJob handles TaskAuditPurge.
type AuditPurgeJob struct {
	store   AuditPurger
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewAuditPurgeJob builds the job. metrics may be nil.
func NewAuditPurgeJob(store AuditPurger, logger *slog.Logger, metrics *Metrics) *AuditPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditPurgeJob{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// Handle runs one purge. Malformed payloads are not retried.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("jobs: decode %s: %v: %w", TaskAuditPurge, err, asynq.SkipRetry)
		}
	}
	days := payload.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	tracker := j.metrics.Track(TaskAuditPurge)
	cutoff := j.now().UTC().AddDate(0, 0, -days)
	removed, err := j.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("audit purge failed", slog.Time("cutoff", cutoff), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddPurged(removed)
	j.logger.Info("audit purge done", slog.Time("cutoff", cutoff), slog.Int64("removed", removed))
	return tracker.End(nil)
}
