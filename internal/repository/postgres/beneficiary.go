package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
)

type beneficiaryRepository struct {
	BaseRepository
}

func NewBeneficiaryRepository(db *sqlx.DB) repository.BeneficiaryRepository {
	return &beneficiaryRepository{NewBaseRepository(db)}
}

func (r *beneficiaryRepository) Create(ctx context.Context, b *model.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (id, name, document_id, needs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.Name, b.DocumentID, b.Needs, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

func (r *beneficiaryRepository) Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	query := `SELECT * FROM beneficiaries WHERE id = $1 AND deleted_at IS NULL`
	var b model.Beneficiary
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}
	return &b, nil
}

func (r *beneficiaryRepository) Update(ctx context.Context, b *model.Beneficiary) error {
	query := `
		UPDATE beneficiaries
		SET name = $1, document_id = $2, needs = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL
	`
	b.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query, b.Name, b.DocumentID, b.Needs, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update beneficiary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *beneficiaryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE beneficiaries SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *beneficiaryRepository) List(ctx context.Context, filters *model.BeneficiaryFilters) ([]*model.Beneficiary, int, error) {
	filters.Normalize()

	where := `deleted_at IS NULL`
	args := []interface{}{}
	if filters.SearchTerm != "" {
		where += ` AND (name ILIKE $1 OR document_id ILIKE $1)`
		args = append(args, "%"+filters.SearchTerm+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM beneficiaries WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count beneficiaries: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT * FROM beneficiaries WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		where, filters.PageSize, filters.Offset(),
	)
	var out []*model.Beneficiary
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	return out, total, nil
}
