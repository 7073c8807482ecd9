package beneficiary

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

type BeneficiaryService interface {
	Create(ctx context.Context, actor model.Actor, req *model.CreateBeneficiaryRequest) (*model.Beneficiary, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateBeneficiaryRequest) (*model.Beneficiary, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
	List(ctx context.Context, filters *model.BeneficiaryFilters) ([]*model.Beneficiary, int, error)
}

type Service struct {
	repo    repository.BeneficiaryRepository
	auditor *audit.Recorder
}

func NewService(repo repository.BeneficiaryRepository, auditor *audit.Recorder) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateBeneficiaryRequest) (*model.Beneficiary, error) {
	if req.Name == "" {
		return nil, errors.Validation("name is required")
	}

	b := &model.Beneficiary{
		Base:       model.Base{ID: uuid.New()},
		Name:       req.Name,
		DocumentID: req.DocumentID,
		Needs:      req.Needs,
	}

	if err := s.repo.Create(ctx, b); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict(fmt.Sprintf("beneficiary with document %s already exists", req.DocumentID), err)
		}
		return nil, errors.Unavailable("failed to create beneficiary", err)
	}

	s.auditor.RecordCreate(ctx, actor, model.AuditEntityBeneficiary, b.ID, b)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("beneficiary", err)
		}
		return nil, errors.Internal(err)
	}
	return b, nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateBeneficiaryRequest) (*model.Beneficiary, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := *b
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.DocumentID != nil {
		b.DocumentID = *req.DocumentID
	}
	if req.Needs != nil {
		b.Needs = *req.Needs
	}

	if err := s.repo.Update(ctx, b); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("beneficiary", err)
		}
		return nil, errors.Unavailable("failed to update beneficiary", err)
	}

	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityBeneficiary, id, &previous, b)
	return b, nil
}

func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound("beneficiary", err)
		}
		return errors.Unavailable("failed to delete beneficiary", err)
	}

	s.auditor.RecordDelete(ctx, actor, model.AuditEntityBeneficiary, id, b)
	return nil
}

func (s *Service) List(ctx context.Context, filters *model.BeneficiaryFilters) ([]*model.Beneficiary, int, error) {
	out, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, errors.Unavailable("failed to list beneficiaries", err)
	}
	return out, total, nil
}
