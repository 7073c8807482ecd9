package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
)

type itemRepository struct {
	BaseRepository
}

func NewItemRepository(db *sqlx.DB) repository.ItemRepository {
	return &itemRepository{NewBaseRepository(db)}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	query := `
		INSERT INTO items (id, name, category, unit, quantity, unit_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.Name, item.Category, item.Unit, item.Quantity, item.UnitValue,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *itemRepository) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	query := `SELECT * FROM items WHERE id = $1 AND deleted_at IS NULL`
	var item model.Item
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (r *itemRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT * FROM items WHERE id = ANY($1) AND deleted_at IS NULL`
	var items []*model.Item
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) Update(ctx context.Context, item *model.Item) error {
	query := `
		UPDATE items
		SET name = $1, category = $2, unit = $3, unit_value = $4, updated_at = $5
		WHERE id = $6 AND deleted_at IS NULL
	`
	item.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query,
		item.Name, item.Category, item.Unit, item.UnitValue, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE items SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *itemRepository) List(ctx context.Context, filters *model.ItemFilters) ([]*model.Item, int, error) {
	filters.Normalize()

	where := `deleted_at IS NULL`
	args := []interface{}{}
	n := 0
	if filters.Category != "" {
		n++
		where += fmt.Sprintf(` AND category = $%d`, n)
		args = append(args, filters.Category)
	}
	if filters.SearchTerm != "" {
		n++
		where += fmt.Sprintf(` AND name ILIKE $%d`, n)
		args = append(args, "%"+filters.SearchTerm+"%")
	}
	if filters.LowStock {
		where += fmt.Sprintf(` AND quantity < %d`, model.LowStockThreshold)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM items WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT * FROM items WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		where, filters.PageSize, filters.Offset(),
	)
	var items []*model.Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	return items, total, nil
}

// AdjustQuantity applies a signed delta. The guard keeps the quantity from
// ever going negative; a failed guard on an existing row reports
// ErrInsufficientStock.
func (r *itemRepository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (int, int, error) {
	return adjustQuantity(ctx, r.db, id, delta)
}

func (r *itemRepository) DecrementTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, qty int) (int, int, error) {
	return adjustQuantity(ctx, tx, id, -qty)
}

type execGetter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func adjustQuantity(ctx context.Context, q execGetter, id uuid.UUID, delta int) (int, int, error) {
	// Single conditional read-modify-write; RETURNING yields the before and
	// after quantities for the stock movement record.
	query := `
		UPDATE items
		SET quantity = quantity + $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL AND quantity + $1 >= 0
		RETURNING quantity - $1 AS before, quantity AS after
	`
	var row struct {
		Before int `db:"before"`
		After  int `db:"after"`
	}
	err := q.GetContext(ctx, &row, query, delta, time.Now(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the item is gone or the guard failed; look once more
			// to tell the two apart.
			var exists bool
			if lookErr := q.GetContext(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM items WHERE id = $1 AND deleted_at IS NULL)`, id); lookErr == nil && !exists {
				return 0, 0, repository.ErrNotFound
			}
			return 0, 0, repository.ErrInsufficientStock
		}
		return 0, 0, fmt.Errorf("failed to adjust item quantity: %w", err)
	}
	return row.Before, row.After, nil
}
