package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTokenSweep purges expired token bookkeeping rows.
	TaskTokenSweep = "token:sweep"
	// TaskAuditRetention prunes old audit log entries.
	TaskAuditRetention = "audit:retention"
)

// TokenSweepPayload carries scheduling metadata for a sweep run.
type TokenSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTokenSweepTask constructs an Asynq task for the token sweep.
func NewTokenSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(TokenSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTokenSweep, body, asynq.Queue(QueueDefault)), nil
}

// AuditRetentionPayload bounds how much history the retention run keeps.
type AuditRetentionPayload struct {
	Keep time.Duration `json:"keep"`
}

// NewAuditRetentionTask constructs an Asynq task for audit log pruning.
func NewAuditRetentionTask(keep time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(AuditRetentionPayload{Keep: keep})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, body, asynq.Queue(QueueDefault)), nil
}

// TokenSweeper deletes bookkeeping rows for tokens past their expiry.
type TokenSweeper interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPruner deletes audit records older than a cutoff.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
