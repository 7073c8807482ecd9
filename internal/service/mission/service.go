package mission

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/errors"
)

type MissionService interface {
	Create(ctx context.Context, actor model.Actor, req *model.CreateMissionRequest) (*model.Mission, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Mission, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateMissionRequest) (*model.Mission, error)
	List(ctx context.Context, p *model.Pagination) ([]*model.Mission, error)
}

type Service struct {
	repo    repository.MissionRepository
	auditor *audit.Recorder
}

func NewService(repo repository.MissionRepository, auditor *audit.Recorder) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateMissionRequest) (*model.Mission, error) {
	volunteers, err := parseVolunteers(req.Volunteers)
	if err != nil {
		return nil, err
	}
	for _, alloc := range req.Allocated {
		if alloc.Quantity <= 0 {
			return nil, errors.Validation("allocation quantity must be positive")
		}
	}

	m := &model.Mission{
		Base:       model.Base{ID: uuid.New()},
		Title:      req.Title,
		Date:       req.Date,
		Status:     model.MissionStatusPlanned,
		Volunteers: volunteers,
		Allocated:  req.Allocated,
	}
	for i := range m.Allocated {
		m.Allocated[i].MissionID = m.ID
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, errors.Unavailable("failed to create mission", err)
	}

	s.auditor.RecordCreate(ctx, actor, model.AuditEntityMission, m.ID, m)
	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Mission, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("mission", err)
		}
		return nil, errors.Internal(err)
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateMissionRequest) (*model.Mission, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := *m
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Date != nil {
		m.Date = *req.Date
	}
	if req.Status != nil {
		status := model.MissionStatus(*req.Status)
		switch status {
		case model.MissionStatusPlanned, model.MissionStatusOngoing,
			model.MissionStatusCompleted, model.MissionStatusCancelled:
			m.Status = status
		default:
			return nil, errors.Validation(fmt.Sprintf("unknown mission status %q", *req.Status))
		}
	}

	if err := s.repo.Update(ctx, m); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("mission", err)
		}
		return nil, errors.Unavailable("failed to update mission", err)
	}

	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityMission, id, &previous, m)
	return m, nil
}

func (s *Service) List(ctx context.Context, p *model.Pagination) ([]*model.Mission, error) {
	out, err := s.repo.List(ctx, p)
	if err != nil {
		return nil, errors.Unavailable("failed to list missions", err)
	}
	return out, nil
}

func parseVolunteers(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, errors.Validation(fmt.Sprintf("invalid volunteer id %q", v))
		}
		out = append(out, id)
	}
	return out, nil
}
