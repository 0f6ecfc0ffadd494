package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TokenSweepHandler removes expired token bookkeeping rows. Redis revocation
// keys expire on their own TTLs; only the postgres side needs sweeping.
type TokenSweepHandler struct {
	sweeper TokenSweeper
	logger  *slog.Logger
}

// NewTokenSweepHandler constructs the sweep handler.
func NewTokenSweepHandler(sweeper TokenSweeper, logger *slog.Logger) *TokenSweepHandler {
	return &TokenSweepHandler{sweeper: sweeper, logger: logger}
}

// ProcessTask runs one sweep.
func (h *TokenSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload TokenSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	cutoff := time.Now().UTC()
	purged, err := h.sweeper.DeleteExpired(ctx, cutoff)
	if err != nil {
		h.logger.Error("token sweep failed", slog.Any("error", err))
		return err
	}
	h.logger.Info("token sweep done",
		slog.Int64("purged", purged),
		slog.Time("cutoff", cutoff))
	return nil
}
