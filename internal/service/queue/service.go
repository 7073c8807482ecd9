package queue

import (
	"context"
	"time"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/pkg/errors"
	"github.com/missioncare/intake-api/pkg/metrics"
)

// QueueService derives the per-status day queues from the visit set.
// Ordering is emergency > preferential > normal, then arrival time.
type QueueService interface {
	QueueFor(ctx context.Context, status model.VisitStatus) ([]*model.Visit, error)
	NextUp(ctx context.Context, status model.VisitStatus) (*model.Visit, error)
	Counts(ctx context.Context) (map[model.VisitStatus]int, error)
}

type Service struct {
	repo    repository.VisitRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.VisitRepository, metrics *metrics.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics, now: time.Now}
}

func (s *Service) QueueFor(ctx context.Context, status model.VisitStatus) ([]*model.Visit, error) {
	if !status.Valid() {
		return nil, errors.Validation("unknown visit status")
	}

	visits, err := s.repo.ListByStatusForDay(ctx, status, s.now())
	if err != nil {
		return nil, errors.Unavailable("failed to load queue", err)
	}

	s.metrics.QueueSize.WithLabelValues(string(status)).Set(float64(len(visits)))
	return visits, nil
}

// NextUp returns the visit at the head of the bucket, or nil when the queue
// is empty.
func (s *Service) NextUp(ctx context.Context, status model.VisitStatus) (*model.Visit, error) {
	visits, err := s.QueueFor(ctx, status)
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return nil, nil
	}
	return visits[0], nil
}

func (s *Service) Counts(ctx context.Context) (map[model.VisitStatus]int, error) {
	counts, err := s.repo.CountByStatusForDay(ctx, s.now())
	if err != nil {
		return nil, errors.Unavailable("failed to count queues", err)
	}
	for status, n := range counts {
		s.metrics.QueueSize.WithLabelValues(string(status)).Set(float64(n))
	}
	return counts, nil
}
