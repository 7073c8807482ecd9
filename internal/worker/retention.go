package worker

import (
	"context"
	"time"

	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/pkg/logger"
)

// RetentionWorker prunes processed outbox rows and, when a retention window
// is configured, audit logs past it. Audit rows are immutable during their
// lifetime; retention is the single sanctioned removal path.
type RetentionWorker struct {
	audits        repository.AuditRepository
	outbox        repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
}

func NewRetentionWorker(
	audits repository.AuditRepository,
	outbox repository.OutboxRepository,
	retentionDays int,
	interval time.Duration,
	logger *logger.Logger,
) *RetentionWorker {
	return &RetentionWorker{
		audits:        audits,
		outbox:        outbox,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	// Processed outbox rows are only kept long enough to debug delivery.
	outboxCutoff := time.Now().AddDate(0, 0, -7)
	if rows, err := w.outbox.DeleteProcessedBefore(ctx, outboxCutoff); err != nil {
		w.logger.Error(err, "failed to prune outbox")
	} else if rows > 0 {
		w.logger.Info("pruned processed outbox events", "rows", rows)
	}

	if w.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
	rows, err := w.audits.Cleanup(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "failed to cleanup audit logs")
		return
	}
	if rows > 0 {
		w.logger.Info("cleaned up audit logs", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	}
}
