package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DefaultAuditRetention keeps three months of audit history.
const DefaultAuditRetention = 90 * 24 * time.Hour

// AuditRetentionHandler prunes old audit log rows.
type AuditRetentionHandler struct {
	pruner AuditPruner
	logger *slog.Logger
}

// NewAuditRetentionHandler constructs the retention handler.
func NewAuditRetentionHandler(pruner AuditPruner, logger *slog.Logger) *AuditRetentionHandler {
	return &AuditRetentionHandler{pruner: pruner, logger: logger}
}

// ProcessTask runs one retention pass.
func (h *AuditRetentionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	keep := payload.Keep
	if keep <= 0 {
		keep = DefaultAuditRetention
	}
	cutoff := time.Now().UTC().Add(-keep)
	purged, err := h.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		h.logger.Error("audit retention failed", slog.Any("error", err))
		return err
	}
	h.logger.Info("audit retention done",
		slog.Int64("purged", purged),
		slog.Time("cutoff", cutoff))
	return nil
}
