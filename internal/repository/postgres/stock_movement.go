package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
)

type stockMovementRepository struct {
	BaseRepository
}

func NewStockMovementRepository(db *sqlx.DB) repository.StockMovementRepository {
	return &stockMovementRepository{NewBaseRepository(db)}
}

const insertMovement = `
	INSERT INTO stock_movements (
		id, item_id, type, quantity, quantity_before, quantity_after,
		reason, visit_id, actor_name, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (r *stockMovementRepository) Create(ctx context.Context, m *model.StockMovement) error {
	return createMovement(ctx, r.db, m)
}

func (r *stockMovementRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error {
	return createMovement(ctx, tx, m)
}

func createMovement(ctx context.Context, e sqlx.ExecerContext, m *model.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()

	_, err := e.ExecContext(ctx, insertMovement,
		m.ID, m.ItemID, m.Type, m.Quantity, m.QuantityBefore, m.QuantityAfter,
		m.Reason, m.VisitID, m.ActorName, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create stock movement: %w", err)
	}
	return nil
}

func (r *stockMovementRepository) ListForItem(ctx context.Context, itemID uuid.UUID, p *model.Pagination) ([]*model.StockMovement, error) {
	p.Normalize()
	query := fmt.Sprintf(`
		SELECT * FROM stock_movements
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, p.PageSize, p.Offset())

	var out []*model.StockMovement
	if err := r.db.SelectContext(ctx, &out, query, itemID); err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return out, nil
}
