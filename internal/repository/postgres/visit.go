package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
)

type visitRepository struct {
	BaseRepository
}

func NewVisitRepository(db *sqlx.DB) repository.VisitRepository {
	return &visitRepository{NewBaseRepository(db)}
}

func (r *visitRepository) Create(ctx context.Context, v *model.Visit) error {
	query := `
		INSERT INTO visits (id, beneficiary_id, visit_date, status, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt

	// The DATE column is bound as a plain date string, the same form the
	// day-scoped queries use, so the server's timezone never shifts the day.
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.BeneficiaryID, v.VisitDate.Format("2006-01-02"), v.Status, v.Priority, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

// visitRow scans the JSONB stage columns as raw bytes. Scanning straight
// into the model would allocate the record pointers before Scan runs, so a
// NULL column would surface as an empty record instead of nil.
type visitRow struct {
	model.Visit
	TriageRaw   []byte `db:"triage"`
	DoctorRaw   []byte `db:"doctor"`
	PharmacyRaw []byte `db:"pharmacy"`
}

func (row *visitRow) toVisit() (*model.Visit, error) {
	v := row.Visit
	decode := func(raw []byte, dst interface{}) error {
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	if len(row.TriageRaw) > 0 {
		v.Triage = &model.TriageRecord{}
	}
	if err := decode(row.TriageRaw, v.Triage); err != nil {
		return nil, fmt.Errorf("failed to decode triage record: %w", err)
	}
	if len(row.DoctorRaw) > 0 {
		v.Doctor = &model.DoctorRecord{}
	}
	if err := decode(row.DoctorRaw, v.Doctor); err != nil {
		return nil, fmt.Errorf("failed to decode doctor record: %w", err)
	}
	if len(row.PharmacyRaw) > 0 {
		v.Pharmacy = &model.PharmacyRecord{}
	}
	if err := decode(row.PharmacyRaw, v.Pharmacy); err != nil {
		return nil, fmt.Errorf("failed to decode pharmacy record: %w", err)
	}
	return &v, nil
}

func (r *visitRepository) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	query := `
		SELECT v.*, b.name AS beneficiary_name
		FROM visits v
		JOIN beneficiaries b ON b.id = v.beneficiary_id
		WHERE v.id = $1
	`
	var row visitRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return row.toVisit()
}

// SetTriage attaches the triage record and advances the status. The WHERE
// clause pins the expected current status so a concurrent transition is
// detected instead of overwritten.
func (r *visitRepository) SetTriage(ctx context.Context, id uuid.UUID, triage *model.TriageRecord, from, to model.VisitStatus) error {
	query := `
		UPDATE visits SET triage = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.guardedUpdate(ctx, id, query, triage, to, time.Now(), id, from)
}

func (r *visitRepository) SetDoctor(ctx context.Context, id uuid.UUID, doctor *model.DoctorRecord, from, to model.VisitStatus) error {
	query := `
		UPDATE visits SET doctor = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.guardedUpdate(ctx, id, query, doctor, to, time.Now(), id, from)
}

func (r *visitRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to model.VisitStatus) error {
	query := `
		UPDATE visits SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return r.guardedUpdate(ctx, id, query, to, time.Now(), id, from)
}

// CompleteTx finalizes the visit inside the dispensation transaction.
func (r *visitRepository) CompleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, pharmacy *model.PharmacyRecord) error {
	query := `
		UPDATE visits SET pharmacy = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := tx.ExecContext(ctx, query, pharmacy, model.VisitStatusCompleted, time.Now(), id, model.VisitStatusPharmacy)
	if err != nil {
		return fmt.Errorf("failed to complete visit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

func (r *visitRepository) guardedUpdate(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update visit %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing visit from a stale status guard.
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM visits WHERE id = $1)`, id); err == nil && !exists {
			return repository.ErrNotFound
		}
		return repository.ErrStaleStatus
	}
	return nil
}

// ListByStatusForDay returns a status bucket for one calendar day, emergency
// first, then preferential, then arrival order.
func (r *visitRepository) ListByStatusForDay(ctx context.Context, status model.VisitStatus, day time.Time) ([]*model.Visit, error) {
	query := `
		SELECT v.*, b.name AS beneficiary_name
		FROM visits v
		JOIN beneficiaries b ON b.id = v.beneficiary_id
		WHERE v.status = $1 AND v.visit_date = $2
		ORDER BY
			CASE v.priority
				WHEN 'emergency' THEN 0
				WHEN 'preferential' THEN 1
				ELSE 2
			END,
			v.created_at ASC
	`
	var rows []*visitRow
	if err := r.db.SelectContext(ctx, &rows, query, status, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	out := make([]*model.Visit, 0, len(rows))
	for _, row := range rows {
		v, err := row.toVisit()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *visitRepository) CountByStatusForDay(ctx context.Context, day time.Time) (map[model.VisitStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM visits
		WHERE visit_date = $1
		GROUP BY status
	`
	rows := []struct {
		Status model.VisitStatus `db:"status"`
		Count  int               `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to count visits: %w", err)
	}

	counts := make(map[model.VisitStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
