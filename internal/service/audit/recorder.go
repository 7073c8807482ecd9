package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/metrics"
)

// Recorder turns every business mutation into an audit domain event on the
// outbox. When the mutation runs inside a transaction the event is enqueued
// in that same transaction, so the two commit or roll back together. Enqueue
// failures outside a transaction are logged and swallowed: the audit trail
// must never fail the originating operation.
type Recorder struct {
	outbox  repository.OutboxRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewRecorder(outbox repository.OutboxRepository, logger *logger.Logger, metrics *metrics.Metrics) *Recorder {
	return &Recorder{outbox: outbox, logger: logger, metrics: metrics}
}

// RecordCreate emits a CREATE event; previous data is always null.
func (r *Recorder) RecordCreate(ctx context.Context, actor model.Actor, entityType string, entityID uuid.UUID, created interface{}) {
	r.record(ctx, nil, actor, entityType, entityID, model.AuditActionCreate, nil, created)
}

// RecordUpdate emits an UPDATE event with the caller's before/after snapshots.
func (r *Recorder) RecordUpdate(ctx context.Context, actor model.Actor, entityType string, entityID uuid.UUID, previous, updated interface{}) {
	r.record(ctx, nil, actor, entityType, entityID, model.AuditActionUpdate, previous, updated)
}

// RecordDelete emits a DELETE event; new data is always null.
func (r *Recorder) RecordDelete(ctx context.Context, actor model.Actor, entityType string, entityID uuid.UUID, previous interface{}) {
	r.record(ctx, nil, actor, entityType, entityID, model.AuditActionDelete, previous, nil)
}

// RecordUpdateTx is the transactional variant used by dispensation: the
// event rides the business transaction and is only visible once it commits.
func (r *Recorder) RecordUpdateTx(ctx context.Context, tx *sqlx.Tx, actor model.Actor, entityType string, entityID uuid.UUID, previous, updated interface{}) error {
	return r.record(ctx, tx, actor, entityType, entityID, model.AuditActionUpdate, previous, updated)
}

func (r *Recorder) record(ctx context.Context, tx *sqlx.Tx, actor model.Actor, entityType string, entityID uuid.UUID, action string, previous, updated interface{}) error {
	event := model.AuditEvent{
		EventID:    uuid.New(),
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OccurredAt: time.Now(),
	}

	var err error
	if previous != nil {
		if event.PreviousData, err = json.Marshal(previous); err != nil {
			r.logger.Error(err, "failed to marshal audit previous snapshot", "entity", entityType)
			return nil
		}
	}
	if updated != nil {
		if event.NewData, err = json.Marshal(updated); err != nil {
			r.logger.Error(err, "failed to marshal audit new snapshot", "entity", entityType)
			return nil
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error(err, "failed to marshal audit event", "entity", entityType)
		return nil
	}

	outboxEvent := &model.OutboxEvent{
		ID:        event.EventID,
		EventType: model.EventTypeAudit,
		Payload:   payload,
	}

	if tx != nil {
		if err := r.outbox.CreateTx(ctx, tx, outboxEvent); err != nil {
			// Inside a transaction the caller decides; a failed enqueue
			// aborts the whole unit so audit coverage stays complete.
			return err
		}
		r.metrics.AuditEventsEmitted.Inc()
		return nil
	}

	if err := r.outbox.Create(ctx, outboxEvent); err != nil {
		r.logger.Error(err, "failed to enqueue audit event",
			"entity", entityType, "entity_id", entityID.String(), "action", action)
		return nil
	}
	r.metrics.AuditEventsEmitted.Inc()
	return nil
}
