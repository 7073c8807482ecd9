package inventory

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/errors"
)

// InventoryService manages items and manual stock adjustments. Dispensation
// has its own service; everything here shares the same non-negativity guard.
type InventoryService interface {
	Create(ctx context.Context, actor model.Actor, req *model.CreateItemRequest) (*model.Item, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Item, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateItemRequest) (*model.Item, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
	List(ctx context.Context, filters *model.ItemFilters) ([]*model.Item, int, error)
	AdjustStock(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.AdjustStockRequest) (*model.Item, error)
	Movements(ctx context.Context, itemID uuid.UUID, p *model.Pagination) ([]*model.StockMovement, error)
}

type Service struct {
	repo      repository.ItemRepository
	movements repository.StockMovementRepository
	auditor   *audit.Recorder
}

func NewService(repo repository.ItemRepository, movements repository.StockMovementRepository, auditor *audit.Recorder) *Service {
	return &Service{repo: repo, movements: movements, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateItemRequest) (*model.Item, error) {
	category := model.ItemCategory(req.Category)
	if !category.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown category %q", req.Category))
	}
	if req.Quantity < 0 {
		return nil, errors.Validation("initial quantity cannot be negative")
	}

	item := &model.Item{
		Base:      model.Base{ID: uuid.New()},
		Name:      req.Name,
		Category:  category,
		Unit:      req.Unit,
		Quantity:  req.Quantity,
		UnitValue: req.UnitValue,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict(fmt.Sprintf("item %q already exists", req.Name), err)
		}
		return nil, errors.Unavailable("failed to create item", err)
	}

	s.auditor.RecordCreate(ctx, actor, model.AuditEntityItem, item.ID, item)
	return item, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("item", err)
		}
		return nil, errors.Internal(err)
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateItemRequest) (*model.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := *item
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.Category != nil {
		category := model.ItemCategory(*req.Category)
		if !category.Valid() {
			return nil, errors.Validation(fmt.Sprintf("unknown category %q", *req.Category))
		}
		item.Category = category
	}
	if req.Unit != nil {
		item.Unit = *req.Unit
	}
	if req.UnitValue != nil {
		item.UnitValue = *req.UnitValue
	}

	if err := s.repo.Update(ctx, item); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("item", err)
		}
		return nil, errors.Unavailable("failed to update item", err)
	}

	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityItem, id, &previous, item)
	return item, nil
}

func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("item", err)
		}
		return errors.Unavailable("failed to delete item", err)
	}

	s.auditor.RecordDelete(ctx, actor, model.AuditEntityItem, id, item)
	return nil
}

func (s *Service) List(ctx context.Context, filters *model.ItemFilters) ([]*model.Item, int, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, errors.Unavailable("failed to list items", err)
	}
	return items, total, nil
}

// AdjustStock applies a signed manual correction (goods received, loss,
// recount). Decrements past zero are rejected by the store-side guard.
func (s *Service) AdjustStock(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.AdjustStockRequest) (*model.Item, error) {
	if req.Quantity == 0 {
		return nil, errors.Validation("adjustment quantity cannot be zero")
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before, after, err := s.repo.AdjustQuantity(ctx, id, req.Quantity)
	if err != nil {
		switch {
		case stderrors.Is(err, repository.ErrInsufficientStock):
			return nil, errors.Validation(fmt.Sprintf(
				"cannot remove %d of %q, only %d on hand", -req.Quantity, item.Name, item.Quantity))
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NotFound("item", err)
		default:
			return nil, errors.Unavailable("failed to adjust stock", err)
		}
	}

	movementType := model.MovementIn
	qty := req.Quantity
	if req.Quantity < 0 {
		movementType = model.MovementOut
		qty = -req.Quantity
	}
	movement := &model.StockMovement{
		ItemID:         id,
		Type:           movementType,
		Quantity:       qty,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         req.Reason,
		ActorName:      actor.Name,
	}
	if err := s.movements.Create(ctx, movement); err != nil {
		return nil, errors.Unavailable("failed to record stock movement", err)
	}

	previous := *item
	previous.Quantity = before
	item.Quantity = after
	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityItem, id, &previous, item)
	return item, nil
}

func (s *Service) Movements(ctx context.Context, itemID uuid.UUID, p *model.Pagination) ([]*model.StockMovement, error) {
	out, err := s.movements.ListForItem(ctx, itemID, p)
	if err != nil {
		return nil, errors.Unavailable("failed to list stock movements", err)
	}
	return out, nil
}
