package dispense

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/errors"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/metrics"
)

// DispensationService issues physical inventory against a visit's
// prescription and closes the visit, as one atomic unit.
type DispensationService interface {
	Dispense(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.DispenseRequest) (*model.Visit, error)
}

type Service struct {
	tx        repository.TxBeginner
	visits    repository.VisitRepository
	items     repository.ItemRepository
	movements repository.StockMovementRepository
	auditor   *audit.Recorder
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	tx repository.TxBeginner,
	visits repository.VisitRepository,
	items repository.ItemRepository,
	movements repository.StockMovementRepository,
	auditor *audit.Recorder,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		tx:        tx,
		visits:    visits,
		items:     items,
		movements: movements,
		auditor:   auditor,
		logger:    logger,
		metrics:   metrics,
	}
}

// Dispense decrements every line's item, attaches the pharmacy record, and
// advances the visit to completed. All decrements and the completion commit
// or roll back together; the guarded per-item UPDATE inside the transaction
// detects concurrent dispensations against the same stock, so two
// pharmacists racing on the last unit cannot both succeed. Validation
// happens before any write and the operation is never retried here; the
// operator re-initiates after a consistency failure.
func (s *Service) Dispense(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.DispenseRequest) (*model.Visit, error) {
	s.metrics.DispenseAttempts.Inc()
	timer := prometheus.NewTimer(s.metrics.DispenseLatency)
	defer timer.ObserveDuration()

	visit, err := s.loadVisit(ctx, visitID)
	if err != nil {
		s.metrics.DispenseFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	lines, itemsByID, err := s.validateLines(ctx, req)
	if err != nil {
		s.metrics.DispenseFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	record := &model.PharmacyRecord{
		Lines:      lines,
		Pharmacist: actor.Name,
		Notes:      req.Notes,
	}

	if err := s.apply(ctx, actor, visit, record, itemsByID); err != nil {
		reason := "unavailable"
		if errors.IsCode(err, errors.ErrConsistency) {
			reason = "consistency"
		}
		s.metrics.DispenseFailures.WithLabelValues(reason).Inc()
		return nil, err
	}

	for _, line := range lines {
		s.metrics.UnitsDispensed.Add(float64(line.Quantity))
	}
	s.metrics.VisitTransitions.WithLabelValues(string(model.VisitStatusCompleted)).Inc()

	visit.Pharmacy = record
	visit.Status = model.VisitStatusCompleted
	return visit, nil
}

func (s *Service) loadVisit(ctx context.Context, visitID uuid.UUID) (*model.Visit, error) {
	visit, err := s.visits.Get(ctx, visitID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("visit", err)
		}
		return nil, errors.Unavailable("failed to load visit", err)
	}
	if visit.Status != model.VisitStatusPharmacy {
		return nil, errors.Validation(
			fmt.Sprintf("visit is in status %q, dispensation requires %q", visit.Status, model.VisitStatusPharmacy))
	}
	return visit, nil
}

// validateLines checks every line against current stock before any write.
// The stock read is advisory; the authoritative guard runs inside the
// transaction.
func (s *Service) validateLines(ctx context.Context, req *model.DispenseRequest) ([]model.DispensedLine, map[uuid.UUID]*model.Item, error) {
	if len(req.Lines) == 0 {
		return nil, nil, errors.Validation("at least one dispense line is required")
	}

	ids := make([]uuid.UUID, 0, len(req.Lines))
	seen := make(map[uuid.UUID]bool, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, nil, errors.Validation("dispense quantity must be positive")
		}
		if seen[line.ItemID] {
			return nil, nil, errors.Validation("duplicate item in dispense lines")
		}
		seen[line.ItemID] = true
		ids = append(ids, line.ItemID)
	}

	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, errors.Unavailable("failed to load items", err)
	}
	byID := make(map[uuid.UUID]*model.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	lines := make([]model.DispensedLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		item, ok := byID[line.ItemID]
		if !ok {
			return nil, nil, errors.Validation(fmt.Sprintf("item %s not found", line.ItemID))
		}
		if line.Quantity > item.Quantity {
			return nil, nil, errors.Validation(fmt.Sprintf(
				"cannot dispense %d of %q, only %d on hand", line.Quantity, item.Name, item.Quantity))
		}
		lines = append(lines, model.DispensedLine{
			ItemID:   item.ID,
			Name:     item.Name,
			Quantity: line.Quantity,
		})
	}
	return lines, byID, nil
}

func (s *Service) apply(ctx context.Context, actor model.Actor, visit *model.Visit, record *model.PharmacyRecord, itemsByID map[uuid.UUID]*model.Item) error {
	tx, err := s.tx.BeginTxx(ctx)
	if err != nil {
		return errors.Unavailable("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, line := range record.Lines {
		before, after, err := s.items.DecrementTx(ctx, tx, line.ItemID, line.Quantity)
		if err != nil {
			if stderrors.Is(err, repository.ErrInsufficientStock) || stderrors.Is(err, repository.ErrNotFound) {
				return errors.Consistency(fmt.Sprintf(
					"stock for %q changed concurrently, reload and retry", line.Name), err)
			}
			return errors.Unavailable("failed to decrement stock", err)
		}

		movement := &model.StockMovement{
			ItemID:         line.ItemID,
			Type:           model.MovementDispense,
			Quantity:       line.Quantity,
			QuantityBefore: before,
			QuantityAfter:  after,
			VisitID:        &visit.ID,
			ActorName:      actor.Name,
		}
		if err := s.movements.CreateTx(ctx, tx, movement); err != nil {
			return errors.Unavailable("failed to record stock movement", err)
		}

		previous := *itemsByID[line.ItemID]
		updated := previous
		previous.Quantity = before
		updated.Quantity = after
		if err := s.auditor.RecordUpdateTx(ctx, tx, actor, model.AuditEntityItem, line.ItemID, &previous, &updated); err != nil {
			return errors.Unavailable("failed to record audit event", err)
		}
	}

	if err := s.visits.CompleteTx(ctx, tx, visit.ID, record); err != nil {
		if stderrors.Is(err, repository.ErrStaleStatus) {
			return errors.Consistency("visit left the pharmacy stage concurrently", err)
		}
		return errors.Unavailable("failed to complete visit", err)
	}

	completed := *visit
	completed.Pharmacy = record
	completed.Status = model.VisitStatusCompleted
	if err := s.auditor.RecordUpdateTx(ctx, tx, actor, model.AuditEntityVisit, visit.ID, visit, &completed); err != nil {
		return errors.Unavailable("failed to record audit event", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Unavailable("failed to commit dispensation", err)
	}
	return nil
}
