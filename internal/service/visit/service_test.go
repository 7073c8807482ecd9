package visit

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/repository"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/errors"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("visit_service_test")

type fakeVisitRepo struct {
	visits    map[uuid.UUID]*model.Visit
	createErr error
	stageErr  error
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: make(map[uuid.UUID]*model.Visit)}
}

func (r *fakeVisitRepo) Create(ctx context.Context, v *model.Visit) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.visits {
		if existing.BeneficiaryID == v.BeneficiaryID && existing.VisitDate.Equal(v.VisitDate) {
			return repository.ErrDuplicate
		}
	}
	copied := *v
	r.visits[v.ID] = &copied
	return nil
}

func (r *fakeVisitRepo) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	v, ok := r.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeVisitRepo) SetTriage(ctx context.Context, id uuid.UUID, triage *model.TriageRecord, from, to model.VisitStatus) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	v, ok := r.visits[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v.Status != from {
		return repository.ErrStaleStatus
	}
	v.Triage = triage
	v.Status = to
	return nil
}

func (r *fakeVisitRepo) SetDoctor(ctx context.Context, id uuid.UUID, doctor *model.DoctorRecord, from, to model.VisitStatus) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	v, ok := r.visits[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v.Status != from {
		return repository.ErrStaleStatus
	}
	v.Doctor = doctor
	v.Status = to
	return nil
}

func (r *fakeVisitRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to model.VisitStatus) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	v, ok := r.visits[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v.Status != from {
		return repository.ErrStaleStatus
	}
	v.Status = to
	return nil
}

func (r *fakeVisitRepo) CompleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, pharmacy *model.PharmacyRecord) error {
	return nil
}

func (r *fakeVisitRepo) ListByStatusForDay(ctx context.Context, status model.VisitStatus, day time.Time) ([]*model.Visit, error) {
	return nil, nil
}

func (r *fakeVisitRepo) CountByStatusForDay(ctx context.Context, day time.Time) (map[model.VisitStatus]int, error) {
	return nil, nil
}

type fakeBeneficiaryRepo struct {
	beneficiaries map[uuid.UUID]*model.Beneficiary
}

func newFakeBeneficiaryRepo() *fakeBeneficiaryRepo {
	return &fakeBeneficiaryRepo{beneficiaries: make(map[uuid.UUID]*model.Beneficiary)}
}

func (r *fakeBeneficiaryRepo) Create(ctx context.Context, b *model.Beneficiary) error {
	r.beneficiaries[b.ID] = b
	return nil
}

func (r *fakeBeneficiaryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Beneficiary, error) {
	b, ok := r.beneficiaries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (r *fakeBeneficiaryRepo) Update(ctx context.Context, b *model.Beneficiary) error { return nil }
func (r *fakeBeneficiaryRepo) Delete(ctx context.Context, id uuid.UUID) error         { return nil }
func (r *fakeBeneficiaryRepo) List(ctx context.Context, filters *model.BeneficiaryFilters) ([]*model.Beneficiary, int, error) {
	return nil, 0, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }
func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	return nil
}
func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) decode(t *testing.T, i int) model.AuditEvent {
	t.Helper()
	require.Greater(t, len(r.events), i)
	var event model.AuditEvent
	require.NoError(t, json.Unmarshal(r.events[i].Payload, &event))
	return event
}

type fixture struct {
	svc           *Service
	visits        *fakeVisitRepo
	beneficiaries *fakeBeneficiaryRepo
	outbox        *fakeOutboxRepo
	actor         model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	visits := newFakeVisitRepo()
	beneficiaries := newFakeBeneficiaryRepo()
	outbox := &fakeOutboxRepo{}

	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	recorder := audit.NewRecorder(outbox, log, testMetrics)

	return &fixture{
		svc:           NewService(visits, beneficiaries, recorder, testMetrics),
		visits:        visits,
		beneficiaries: beneficiaries,
		outbox:        outbox,
		actor:         model.Actor{ID: uuid.New(), Name: "Nurse Ana", Email: "ana@example.org"},
	}
}

func (f *fixture) seedBeneficiary(t *testing.T) *model.Beneficiary {
	t.Helper()
	b := &model.Beneficiary{
		Base: model.Base{ID: uuid.New()},
		Name: "Carlos Silva",
	}
	require.NoError(t, f.beneficiaries.Create(context.Background(), b))
	return b
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, model.VisitStatusTriage, visit.Status)
	assert.Equal(t, model.PriorityNormal, visit.Priority)
	assert.Equal(t, b.Name, visit.BeneficiaryName)
	assert.Nil(t, visit.Triage)

	// CREATE audit event with no previous snapshot
	event := f.outbox.decode(t, 0)
	assert.Equal(t, model.AuditActionCreate, event.Action)
	assert.Equal(t, model.AuditEntityVisit, event.EntityType)
	assert.Nil(t, event.PreviousData)
	assert.NotNil(t, event.NewData)
}

func TestCheckInUsesLocalCalendarDay(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	// 08:00 in a UTC+10 zone is still the previous day in UTC; the stored
	// visit date must match the day the queue queries filter on.
	zone := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, zone)
	f.svc.now = func() time.Time { return now }

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, now.Format("2006-01-02"), visit.VisitDate.Format("2006-01-02"))
	assert.Equal(t, "2026-09-01", visit.VisitDate.Format("2006-01-02"))
}

func TestCheckInDuplicateSameDay(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	_, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityNormal)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityEmergency)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConflict))
}

func TestCheckInUnknownBeneficiary(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckIn(context.Background(), f.actor, uuid.New(), model.PriorityNormal)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestCheckInInvalidPriority(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	_, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, "urgent")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestRecordTriage(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityNormal)
	require.NoError(t, err)

	updated, err := f.svc.RecordTriage(context.Background(), f.actor, visit.ID, &model.RecordTriageRequest{
		BloodPressure: "120/80",
		Temperature:   "36.7",
		Symptoms:      "headache",
	})
	require.NoError(t, err)

	assert.Equal(t, model.VisitStatusWaitingConsultation, updated.Status)
	require.NotNil(t, updated.Triage)
	assert.Equal(t, "120/80", updated.Triage.BloodPressure)
	assert.Equal(t, f.actor.Name, updated.Triage.Nurse)

	// check-in CREATE plus triage UPDATE
	event := f.outbox.decode(t, 1)
	assert.Equal(t, model.AuditActionUpdate, event.Action)
	assert.NotNil(t, event.PreviousData)
	assert.NotNil(t, event.NewData)
}

func TestRecordTriageWrongStage(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityNormal)
	require.NoError(t, err)

	_, err = f.svc.RecordTriage(context.Background(), f.actor, visit.ID, &model.RecordTriageRequest{
		BloodPressure: "120/80", Temperature: "36.7",
	})
	require.NoError(t, err)

	// second triage on the same visit is rejected by the state machine
	_, err = f.svc.RecordTriage(context.Background(), f.actor, visit.ID, &model.RecordTriageRequest{
		BloodPressure: "130/85", Temperature: "37.0",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestRecordTriageConcurrentStageChange(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityNormal)
	require.NoError(t, err)

	// Another terminal moved the visit between our read and write.
	f.visits.stageErr = repository.ErrStaleStatus

	_, err = f.svc.RecordTriage(context.Background(), f.actor, visit.ID, &model.RecordTriageRequest{
		BloodPressure: "120/80", Temperature: "36.7",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConsistency))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable())
}

func TestStartConsultationOptional(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityNormal)
	require.NoError(t, err)
	_, err = f.svc.RecordTriage(context.Background(), f.actor, visit.ID, &model.RecordTriageRequest{
		BloodPressure: "120/80", Temperature: "36.7",
	})
	require.NoError(t, err)

	// explicit start
	started, err := f.svc.StartConsultation(context.Background(), f.actor, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusInConsultation, started.Status)

	// and recording still works from there
	done, err := f.svc.RecordConsultation(context.Background(), f.actor, visit.ID, &model.RecordConsultationRequest{
		Diagnosis: "tension headache",
	})
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusPharmacy, done.Status)
}

func TestRecordConsultationSkippingStart(t *testing.T) {
	f := newFixture(t)
	b := f.seedBeneficiary(t)

	visit, err := f.svc.CheckIn(context.Background(), f.actor, b.ID, model.PriorityNormal)
	require.NoError(t, err)
	_, err = f.svc.RecordTriage(context.Background(), f.actor, visit.ID, &model.RecordTriageRequest{
		BloodPressure: "120/80", Temperature: "36.7",
	})
	require.NoError(t, err)

	done, err := f.svc.RecordConsultation(context.Background(), f.actor, visit.ID, &model.RecordConsultationRequest{
		Diagnosis:   "dehydration",
		Medications: []string{"oral rehydration salts"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.VisitStatusPharmacy, done.Status)
	require.NotNil(t, done.Doctor)
	assert.Equal(t, f.actor.Name, done.Doctor.Clinician)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}
