package advisor

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/pkg/errors"
)

// AdvisorService surfaces the medication-category items allocated to the
// acting volunteer's missions. Advisory only: it ranks, it never restricts.
type AdvisorService interface {
	RecommendedMedications(ctx context.Context, actor model.Actor) ([]*model.RecommendedItem, error)
}

type Service struct {
	missions repository.MissionRepository
	cache    *gocache.Cache
}

// Recommendations are cheap to stale: a short per-actor cache absorbs the
// repeated lookups a busy consultation screen generates.
const cacheTTL = 30 * time.Second

func NewService(missions repository.MissionRepository) *Service {
	return &Service{
		missions: missions,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
	}
}

func (s *Service) RecommendedMedications(ctx context.Context, actor model.Actor) ([]*model.RecommendedItem, error) {
	if cached, ok := s.cache.Get(actor.ID.String()); ok {
		return cached.([]*model.RecommendedItem), nil
	}

	missionIDs, err := s.focusMissions(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(missionIDs) == 0 {
		return nil, nil
	}

	items, err := s.missions.AllocationsByCategory(ctx, missionIDs, model.CategoryMedications)
	if err != nil {
		return nil, errors.Unavailable("failed to load mission allocations", err)
	}

	s.cache.Set(actor.ID.String(), items, cacheTTL)
	return items, nil
}

// focusMissions returns the actor's own non-cancelled missions, falling back
// to the single nearest planned mission when the actor is assigned to none.
func (s *Service) focusMissions(ctx context.Context, actor model.Actor) ([]uuid.UUID, error) {
	mine, err := s.missions.ListForVolunteer(ctx, actor.ID)
	if err != nil {
		return nil, errors.Unavailable("failed to load missions", err)
	}
	if len(mine) > 0 {
		ids := make([]uuid.UUID, len(mine))
		for i, m := range mine {
			ids[i] = m.ID
		}
		return ids, nil
	}

	next, err := s.missions.NextPlanned(ctx)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Unavailable("failed to load next planned mission", err)
	}
	return []uuid.UUID{next.ID}, nil
}
