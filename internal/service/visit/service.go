package visit

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/errors"
	"github.com/missioncare/intake-api/pkg/metrics"
)

// VisitService owns the visit state machine: check-in and the per-stage data
// capture. Completion belongs to the dispensation service.
type VisitService interface {
	CheckIn(ctx context.Context, actor model.Actor, beneficiaryID uuid.UUID, priority model.VisitPriority) (*model.Visit, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Visit, error)
	RecordTriage(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.RecordTriageRequest) (*model.Visit, error)
	StartConsultation(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*model.Visit, error)
	RecordConsultation(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.RecordConsultationRequest) (*model.Visit, error)
}

type Service struct {
	repo        repository.VisitRepository
	beneficiary repository.BeneficiaryRepository
	auditor     *audit.Recorder
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(repo repository.VisitRepository, beneficiary repository.BeneficiaryRepository, auditor *audit.Recorder, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:        repo,
		beneficiary: beneficiary,
		auditor:     auditor,
		metrics:     metrics,
		now:         time.Now,
	}
}

// CheckIn opens today's visit for the beneficiary. The per-day uniqueness is
// enforced by the store, not by a read-then-write, so two terminals racing on
// the same beneficiary cannot both succeed.
func (s *Service) CheckIn(ctx context.Context, actor model.Actor, beneficiaryID uuid.UUID, priority model.VisitPriority) (*model.Visit, error) {
	if priority == "" {
		priority = model.PriorityNormal
	}
	if !priority.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown priority %q", priority))
	}

	beneficiary, err := s.beneficiary.Get(ctx, beneficiaryID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("beneficiary", err)
		}
		return nil, errors.Internal(err)
	}

	now := s.now()
	visit := &model.Visit{
		Base:            model.Base{ID: uuid.New()},
		BeneficiaryID:   beneficiaryID,
		BeneficiaryName: beneficiary.Name,
		VisitDate:       model.CalendarDay(now),
		Status:          model.VisitStatusTriage,
		Priority:        priority,
	}

	if err := s.repo.Create(ctx, visit); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict(
				fmt.Sprintf("beneficiary %s already has a visit today", beneficiary.Name), err)
		}
		return nil, errors.Unavailable("failed to create visit", err)
	}

	s.metrics.VisitCheckIns.Inc()
	s.auditor.RecordCreate(ctx, actor, model.AuditEntityVisit, visit.ID, visit)
	return visit, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("visit", err)
		}
		return nil, errors.Internal(err)
	}
	return visit, nil
}

// RecordTriage attaches vitals and advances triage → waiting_consultation.
func (s *Service) RecordTriage(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.RecordTriageRequest) (*model.Visit, error) {
	visit, err := s.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}

	next, err := model.Transition(visit.Status, model.EventTriageRecorded)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	triage := &model.TriageRecord{
		BloodPressure: req.BloodPressure,
		Temperature:   req.Temperature,
		HeartRate:     req.HeartRate,
		Weight:        req.Weight,
		Symptoms:      req.Symptoms,
		Nurse:         actor.Name,
	}

	previous := *visit
	if err := s.repo.SetTriage(ctx, visitID, triage, visit.Status, next); err != nil {
		return nil, s.mapStageError(err)
	}

	visit.Triage = triage
	visit.Status = next
	s.metrics.VisitTransitions.WithLabelValues(string(next)).Inc()
	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityVisit, visitID, &previous, visit)
	return visit, nil
}

// StartConsultation marks the clinician as actively engaged. Optional stage;
// RecordConsultation is also legal straight from waiting_consultation.
func (s *Service) StartConsultation(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*model.Visit, error) {
	visit, err := s.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}

	next, err := model.Transition(visit.Status, model.EventConsultationStarted)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	previous := *visit
	if err := s.repo.SetStatus(ctx, visitID, visit.Status, next); err != nil {
		return nil, s.mapStageError(err)
	}

	visit.Status = next
	s.metrics.VisitTransitions.WithLabelValues(string(next)).Inc()
	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityVisit, visitID, &previous, visit)
	return visit, nil
}

// RecordConsultation attaches the clinical record and advances to pharmacy.
func (s *Service) RecordConsultation(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.RecordConsultationRequest) (*model.Visit, error) {
	visit, err := s.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}

	next, err := model.Transition(visit.Status, model.EventConsultationRecorded)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	doctor := &model.DoctorRecord{
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
		Medications:  req.Medications,
		Clinician:    actor.Name,
	}

	previous := *visit
	if err := s.repo.SetDoctor(ctx, visitID, doctor, visit.Status, next); err != nil {
		return nil, s.mapStageError(err)
	}

	visit.Doctor = doctor
	visit.Status = next
	s.metrics.VisitTransitions.WithLabelValues(string(next)).Inc()
	s.auditor.RecordUpdate(ctx, actor, model.AuditEntityVisit, visitID, &previous, visit)
	return visit, nil
}

func (s *Service) mapStageError(err error) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound("visit", err)
	case stderrors.Is(err, repository.ErrStaleStatus):
		return errors.Consistency("visit stage changed concurrently, reload and retry", err)
	default:
		return errors.Unavailable("failed to update visit", err)
	}
}
