package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{NewBaseRepository(db)}
}

// Create inserts one immutable log row. ON CONFLICT DO NOTHING keeps the
// at-least-once audit pipeline from duplicating rows on redelivery.
func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, actor_name, actor_email,
			entity_type, entity_id, action,
			previous_data, new_data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.ActorID, log.ActorName, log.ActorEmail,
		log.EntityType, log.EntityID, log.Action,
		log.PreviousData, log.NewData, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error) {
	filters.Normalize()

	where := `1 = 1`
	args := []interface{}{}
	n := 0
	add := func(clause string, value interface{}) {
		n++
		where += fmt.Sprintf(` AND `+clause, n)
		args = append(args, value)
	}

	if filters.ActorID != "" {
		add(`actor_id = $%d`, filters.ActorID)
	}
	if filters.EntityType != "" {
		add(`entity_type = $%d`, filters.EntityType)
	}
	if filters.EntityID != "" {
		add(`entity_id = $%d`, filters.EntityID)
	}
	if filters.Action != "" {
		add(`action = $%d`, filters.Action)
	}
	if !filters.StartDate.IsZero() {
		add(`created_at >= $%d`, filters.StartDate)
	}
	if !filters.EndDate.IsZero() {
		add(`created_at <= $%d`, filters.EndDate)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT * FROM audit_logs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, filters.PageSize, filters.Offset(),
	)
	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

func (r *auditRepository) GetAggregateStats(ctx context.Context, filters *model.AuditFilters) (*model.AggregateStats, error) {
	stats := &model.AggregateStats{
		ActionCounts:  make(map[string]int),
		EntityCounts:  make(map[string]int),
		ActorActivity: make(map[string]int),
	}

	if err := r.db.GetContext(ctx, &stats.TotalLogs, `SELECT COUNT(*) FROM audit_logs`); err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}
	load := func(query string, dst map[string]int) error {
		var rows []bucket
		if err := r.db.SelectContext(ctx, &rows, query); err != nil {
			return err
		}
		for _, row := range rows {
			dst[row.Key] = row.Count
		}
		return nil
	}

	if err := load(`SELECT action AS key, COUNT(*) AS count FROM audit_logs GROUP BY action`, stats.ActionCounts); err != nil {
		return nil, fmt.Errorf("failed to aggregate actions: %w", err)
	}
	if err := load(`SELECT entity_type AS key, COUNT(*) AS count FROM audit_logs GROUP BY entity_type`, stats.EntityCounts); err != nil {
		return nil, fmt.Errorf("failed to aggregate entities: %w", err)
	}
	if err := load(`SELECT actor_name AS key, COUNT(*) AS count FROM audit_logs GROUP BY actor_name ORDER BY count DESC LIMIT 20`, stats.ActorActivity); err != nil {
		return nil, fmt.Errorf("failed to aggregate actors: %w", err)
	}
	return stats, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return res.RowsAffected()
}
