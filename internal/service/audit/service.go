package audit

import (
	"context"
	"time"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/pkg/errors"
)

// Service is the read side of the audit trail. Entries are written only by
// the audit writer worker; there is no update or delete surface.
type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error) {
	logs, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, errors.Internal(err)
	}
	return logs, total, nil
}

func (s *Service) GetAggregateStats(ctx context.Context, filters *model.AuditFilters) (*model.AggregateStats, error) {
	stats, err := s.repo.GetAggregateStats(ctx, filters)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return stats, nil
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, before)
}
