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

type missionRepository struct {
	BaseRepository
}

func NewMissionRepository(db *sqlx.DB) repository.MissionRepository {
	return &missionRepository{NewBaseRepository(db)}
}

func (r *missionRepository) Create(ctx context.Context, m *model.Mission) error {
	tx, err := r.BeginTxx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt

	query := `
		INSERT INTO missions (id, title, date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query,
		m.ID, m.Title, m.Date, m.Status, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}

	if err := r.replaceAssociations(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *missionRepository) replaceAssociations(ctx context.Context, tx *sqlx.Tx, m *model.Mission) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM mission_volunteers WHERE mission_id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to clear mission volunteers: %w", err)
	}
	for _, vol := range m.Volunteers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mission_volunteers (mission_id, volunteer_id) VALUES ($1, $2)`,
			m.ID, vol,
		); err != nil {
			return fmt.Errorf("failed to add mission volunteer: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mission_allocations WHERE mission_id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to clear mission allocations: %w", err)
	}
	for _, alloc := range m.Allocated {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mission_allocations (mission_id, item_id, quantity) VALUES ($1, $2, $3)`,
			m.ID, alloc.ItemID, alloc.Quantity,
		); err != nil {
			return fmt.Errorf("failed to add mission allocation: %w", err)
		}
	}
	return nil
}

func (r *missionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Mission, error) {
	var m model.Mission
	if err := r.db.GetContext(ctx, &m, `SELECT * FROM missions WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	if err := r.loadAssociations(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *missionRepository) loadAssociations(ctx context.Context, m *model.Mission) error {
	if err := r.db.SelectContext(ctx, &m.Volunteers,
		`SELECT volunteer_id FROM mission_volunteers WHERE mission_id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to load mission volunteers: %w", err)
	}
	if err := r.db.SelectContext(ctx, &m.Allocated,
		`SELECT mission_id, item_id, quantity FROM mission_allocations WHERE mission_id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to load mission allocations: %w", err)
	}
	return nil
}

func (r *missionRepository) Update(ctx context.Context, m *model.Mission) error {
	tx, err := r.BeginTxx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m.UpdatedAt = time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE missions SET title = $1, date = $2, status = $3, updated_at = $4 WHERE id = $5 AND deleted_at IS NULL`,
		m.Title, m.Date, m.Status, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	if err := r.replaceAssociations(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *missionRepository) List(ctx context.Context, p *model.Pagination) ([]*model.Mission, error) {
	p.Normalize()
	query := fmt.Sprintf(
		`SELECT * FROM missions WHERE deleted_at IS NULL ORDER BY date DESC LIMIT %d OFFSET %d`,
		p.PageSize, p.Offset(),
	)
	var out []*model.Mission
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	return out, nil
}

func (r *missionRepository) ListForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]*model.Mission, error) {
	query := `
		SELECT m.*
		FROM missions m
		JOIN mission_volunteers mv ON mv.mission_id = m.id
		WHERE mv.volunteer_id = $1
		  AND m.status <> $2
		  AND m.deleted_at IS NULL
		ORDER BY m.date ASC
	`
	var out []*model.Mission
	if err := r.db.SelectContext(ctx, &out, query, volunteerID, model.MissionStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to list missions for volunteer: %w", err)
	}
	return out, nil
}

func (r *missionRepository) NextPlanned(ctx context.Context) (*model.Mission, error) {
	query := `
		SELECT * FROM missions
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY date ASC
		LIMIT 1
	`
	var m model.Mission
	if err := r.db.GetContext(ctx, &m, query, model.MissionStatusPlanned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get next planned mission: %w", err)
	}
	return &m, nil
}

// AllocationsByCategory joins mission allocations with live item state,
// de-duplicated by item name across the mission set.
func (r *missionRepository) AllocationsByCategory(ctx context.Context, missionIDs []uuid.UUID, category model.ItemCategory) ([]*model.RecommendedItem, error) {
	if len(missionIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT ON (i.name)
			i.id AS item_id, i.name, i.unit, i.quantity AS on_hand
		FROM mission_allocations ma
		JOIN items i ON i.id = ma.item_id
		WHERE ma.mission_id = ANY($1)
		  AND i.category = $2
		  AND i.deleted_at IS NULL
		ORDER BY i.name ASC
	`
	rows := []struct {
		ItemID uuid.UUID `db:"item_id"`
		Name   string    `db:"name"`
		Unit   string    `db:"unit"`
		OnHand int       `db:"on_hand"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(missionIDs), category); err != nil {
		return nil, fmt.Errorf("failed to load mission allocations: %w", err)
	}

	out := make([]*model.RecommendedItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, &model.RecommendedItem{
			ItemID:   row.ItemID,
			Name:     row.Name,
			Unit:     row.Unit,
			OnHand:   row.OnHand,
			LowStock: row.OnHand < model.LowStockThreshold,
		})
	}
	return out, nil
}
