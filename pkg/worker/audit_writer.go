package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/messaging"
	"github.com/missioncare/intake-api/pkg/metrics"
)

type AuditWriterConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// AuditWriter drains audit events from the outbox into the immutable audit
// log, then mirrors them onto the broker for live observers. Delivery is
// at-least-once; the log insert is idempotent on the event ID, so a crash
// between insert and acknowledge only costs a redundant write.
type AuditWriter struct {
	outbox  repository.OutboxRepository
	audits  repository.AuditRepository
	broker  messaging.Broker
	config  AuditWriterConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewAuditWriter(
	outbox repository.OutboxRepository,
	audits repository.AuditRepository,
	broker messaging.Broker,
	config AuditWriterConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *AuditWriter {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &AuditWriter{
		outbox:  outbox,
		audits:  audits,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (w *AuditWriter) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("starting audit writer")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down audit writer")
			return
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error(err, "failed to process audit batch")
			}
		}
	}
}

func (w *AuditWriter) ProcessBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(w.metrics.AuditProcessingLatency)
	defer timer.ObserveDuration()

	events, err := w.outbox.GetPendingEventsWithLock(ctx, w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			w.handleFailure(ctx, event, err)
			continue
		}
		w.metrics.AuditEventsProcessed.Inc()
		if err := w.outbox.MarkProcessed(ctx, event.ID); err != nil {
			w.logger.Error(err, "failed to mark event processed", "event_id", event.ID.String())
		}
	}
	return nil
}

func (w *AuditWriter) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if event.EventType != model.EventTypeAudit {
		return fmt.Errorf("unexpected event type %q", event.EventType)
	}

	var audit model.AuditEvent
	if err := json.Unmarshal(event.Payload, &audit); err != nil {
		return fmt.Errorf("failed to decode audit event: %w", err)
	}

	log := &model.AuditLog{
		ID:           audit.EventID,
		ActorID:      audit.Actor.ID,
		ActorName:    audit.Actor.Name,
		ActorEmail:   audit.Actor.Email,
		EntityType:   audit.EntityType,
		EntityID:     audit.EntityID,
		Action:       audit.Action,
		PreviousData: audit.PreviousData,
		NewData:      audit.NewData,
		CreatedAt:    audit.OccurredAt,
	}
	if err := w.audits.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	// The log row is the durable record; a broker hiccup only costs live
	// observers this one notification.
	if err := w.broker.Publish(ctx, messaging.ChannelAudit, event.Payload); err != nil {
		w.logger.Warn("failed to publish audit event", "event_id", event.ID.String(), "error", err.Error())
	}
	return nil
}

func (w *AuditWriter) handleFailure(ctx context.Context, event *model.OutboxEvent, cause error) {
	w.logger.Error(cause, "failed to process audit event",
		"event_id", event.ID.String(), "retry_count", event.RetryCount)

	var retryAt *time.Time
	if event.RetryCount+1 < w.config.MaxRetries {
		// Linear backoff: each extra attempt waits one more delay unit.
		next := time.Now().Add(w.config.RetryDelay * time.Duration(event.RetryCount+1))
		retryAt = &next
	} else {
		w.metrics.AuditEventsFailed.Inc()
	}

	if err := w.outbox.MarkFailed(ctx, event.ID, cause.Error(), retryAt); err != nil {
		w.logger.Error(err, "failed to mark event failed", "event_id", event.ID.String())
	}
}
