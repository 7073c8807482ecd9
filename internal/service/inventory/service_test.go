package inventory

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/errors"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("inventory_service_test")

type fakeItemRepo struct {
	items map[uuid.UUID]*model.Item
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[uuid.UUID]*model.Item)}
}

func (r *fakeItemRepo) Create(ctx context.Context, item *model.Item) error {
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeItemRepo) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *fakeItemRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Item, error) {
	return nil, nil
}

func (r *fakeItemRepo) Update(ctx context.Context, item *model.Item) error {
	if _, ok := r.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeItemRepo) List(ctx context.Context, filters *model.ItemFilters) ([]*model.Item, int, error) {
	return nil, 0, nil
}

func (r *fakeItemRepo) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int, int, error) {
	item, ok := r.items[id]
	if !ok {
		return 0, 0, repository.ErrNotFound
	}
	if item.Quantity+delta < 0 {
		return 0, 0, repository.ErrInsufficientStock
	}
	before := item.Quantity
	item.Quantity += delta
	return before, item.Quantity, nil
}

func (r *fakeItemRepo) DecrementTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, qty int) (int, int, error) {
	return 0, 0, nil
}

type fakeMovementRepo struct {
	movements []*model.StockMovement
}

func (r *fakeMovementRepo) Create(ctx context.Context, m *model.StockMovement) error {
	r.movements = append(r.movements, m)
	return nil
}

func (r *fakeMovementRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error {
	return nil
}

func (r *fakeMovementRepo) ListForItem(ctx context.Context, itemID uuid.UUID, p *model.Pagination) ([]*model.StockMovement, error) {
	return r.movements, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	return nil
}

func (r *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }
func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	return nil
}
func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestService() (*Service, *fakeItemRepo, *fakeMovementRepo, *fakeOutboxRepo) {
	items := newFakeItemRepo()
	movements := &fakeMovementRepo{}
	outbox := &fakeOutboxRepo{}
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	recorder := audit.NewRecorder(outbox, log, testMetrics)
	return NewService(items, movements, recorder), items, movements, outbox
}

func seedItem(t *testing.T, items *fakeItemRepo, quantity int) *model.Item {
	t.Helper()
	item := &model.Item{
		Base:     model.Base{ID: uuid.New()},
		Name:     "Saline 0.9%",
		Category: model.CategoryMedications,
		Unit:     "bottle",
		Quantity: quantity,
	}
	require.NoError(t, items.Create(context.Background(), item))
	return item
}

func TestCreateItem(t *testing.T) {
	svc, _, _, outbox := newTestService()
	actor := model.Actor{ID: uuid.New(), Name: "Admin"}

	item, err := svc.Create(context.Background(), actor, &model.CreateItemRequest{
		Name:     "Gauze pads",
		Category: string(model.CategoryHygiene),
		Unit:     "pack",
		Quantity: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, item.Quantity)
	assert.Len(t, outbox.events, 1)
}

func TestCreateItemRejectsUnknownCategory(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Create(context.Background(), model.Actor{}, &model.CreateItemRequest{
		Name:     "Gauze pads",
		Category: "Hardware",
		Unit:     "pack",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestAdjustStockIn(t *testing.T) {
	svc, items, movements, _ := newTestService()
	item := seedItem(t, items, 10)
	actor := model.Actor{ID: uuid.New(), Name: "Storekeeper"}

	updated, err := svc.AdjustStock(context.Background(), actor, item.ID, &model.AdjustStockRequest{
		Quantity: 25,
		Reason:   "donation received",
	})
	require.NoError(t, err)
	assert.Equal(t, 35, updated.Quantity)

	require.Len(t, movements.movements, 1)
	m := movements.movements[0]
	assert.Equal(t, model.MovementIn, m.Type)
	assert.Equal(t, 25, m.Quantity)
	assert.Equal(t, 10, m.QuantityBefore)
	assert.Equal(t, 35, m.QuantityAfter)
	assert.Equal(t, "donation received", m.Reason)
}

func TestAdjustStockOut(t *testing.T) {
	svc, items, movements, _ := newTestService()
	item := seedItem(t, items, 10)

	updated, err := svc.AdjustStock(context.Background(), model.Actor{Name: "Storekeeper"}, item.ID, &model.AdjustStockRequest{
		Quantity: -4,
		Reason:   "expired batch",
	})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Quantity)

	require.Len(t, movements.movements, 1)
	assert.Equal(t, model.MovementOut, movements.movements[0].Type)
	assert.Equal(t, 4, movements.movements[0].Quantity)
}

func TestAdjustStockPastZero(t *testing.T) {
	svc, items, movements, _ := newTestService()
	item := seedItem(t, items, 3)

	_, err := svc.AdjustStock(context.Background(), model.Actor{}, item.ID, &model.AdjustStockRequest{
		Quantity: -5,
		Reason:   "recount",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
	assert.Equal(t, 3, items.items[item.ID].Quantity)
	assert.Empty(t, movements.movements)
}

func TestAdjustStockZeroDelta(t *testing.T) {
	svc, items, _, _ := newTestService()
	item := seedItem(t, items, 3)

	_, err := svc.AdjustStock(context.Background(), model.Actor{}, item.ID, &model.AdjustStockRequest{Quantity: 0})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestDeleteItemAudited(t *testing.T) {
	svc, items, _, outbox := newTestService()
	item := seedItem(t, items, 3)

	require.NoError(t, svc.Delete(context.Background(), model.Actor{ID: uuid.New()}, item.ID))
	assert.NotContains(t, items.items, item.ID)
	require.Len(t, outbox.events, 1)
}
