package audit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("audit_recorder_test")

type fakeOutboxRepo struct {
	events      []*model.OutboxEvent
	createErr   error
	createTxErr error
}

func (r *fakeOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	if r.createTxErr != nil {
		return r.createTxErr
	}
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

func newTestRecorder(outbox *fakeOutboxRepo) *Recorder {
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	return NewRecorder(outbox, log, testMetrics)
}

func decodeEvent(t *testing.T, outbox *fakeOutboxRepo, i int) model.AuditEvent {
	t.Helper()
	require.Greater(t, len(outbox.events), i)
	var event model.AuditEvent
	require.NoError(t, json.Unmarshal(outbox.events[i].Payload, &event))
	return event
}

func TestRecordCreate(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	recorder := newTestRecorder(outbox)
	actor := model.Actor{ID: uuid.New(), Name: "Admin", Email: "admin@example.org"}
	entityID := uuid.New()

	recorder.RecordCreate(context.Background(), actor, model.AuditEntityItem, entityID,
		&model.Item{Name: "Gauze", Quantity: 40})

	require.Len(t, outbox.events, 1)
	assert.Equal(t, model.EventTypeAudit, outbox.events[0].EventType)

	event := decodeEvent(t, outbox, 0)
	assert.Equal(t, model.AuditActionCreate, event.Action)
	assert.Equal(t, actor, event.Actor)
	assert.Equal(t, entityID, event.EntityID)
	assert.Nil(t, event.PreviousData)
	assert.NotNil(t, event.NewData)

	// outbox row ID carries the event ID so replays dedupe downstream
	assert.Equal(t, event.EventID, outbox.events[0].ID)
}

func TestRecordUpdate(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	recorder := newTestRecorder(outbox)
	actor := model.Actor{ID: uuid.New(), Name: "Admin"}

	before := &model.Item{Name: "Gauze", Quantity: 40}
	after := &model.Item{Name: "Gauze", Quantity: 35}
	recorder.RecordUpdate(context.Background(), actor, model.AuditEntityItem, uuid.New(), before, after)

	event := decodeEvent(t, outbox, 0)
	assert.Equal(t, model.AuditActionUpdate, event.Action)

	var prev, next model.Item
	require.NoError(t, json.Unmarshal(event.PreviousData, &prev))
	require.NoError(t, json.Unmarshal(event.NewData, &next))
	assert.Equal(t, 40, prev.Quantity)
	assert.Equal(t, 35, next.Quantity)
}

func TestRecordDelete(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	recorder := newTestRecorder(outbox)

	recorder.RecordDelete(context.Background(), model.Actor{ID: uuid.New()}, model.AuditEntityBeneficiary,
		uuid.New(), &model.Beneficiary{Name: "Carlos"})

	event := decodeEvent(t, outbox, 0)
	assert.Equal(t, model.AuditActionDelete, event.Action)
	assert.NotNil(t, event.PreviousData)
	assert.Nil(t, event.NewData)
}

func TestRecordSwallowsEnqueueFailure(t *testing.T) {
	outbox := &fakeOutboxRepo{createErr: stderrors.New("connection refused")}
	recorder := newTestRecorder(outbox)

	// best-effort path never surfaces the failure to the caller
	recorder.RecordCreate(context.Background(), model.Actor{ID: uuid.New()}, model.AuditEntityItem,
		uuid.New(), &model.Item{Name: "Gauze"})

	assert.Empty(t, outbox.events)
}

func TestRecordUpdateTxPropagatesFailure(t *testing.T) {
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer rawDB.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	db := sqlx.NewDb(rawDB, "sqlmock")
	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	outbox := &fakeOutboxRepo{createTxErr: stderrors.New("connection refused")}
	recorder := newTestRecorder(outbox)

	// inside a transaction the failure must abort the caller's unit of work
	err = recorder.RecordUpdateTx(context.Background(), tx, model.Actor{ID: uuid.New()},
		model.AuditEntityItem, uuid.New(), &model.Item{Quantity: 2}, &model.Item{Quantity: 1})
	require.Error(t, err)
}

func TestRecordEventIDsAreUnique(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	recorder := newTestRecorder(outbox)
	actor := model.Actor{ID: uuid.New()}

	recorder.RecordCreate(context.Background(), actor, model.AuditEntityItem, uuid.New(), &model.Item{})
	recorder.RecordCreate(context.Background(), actor, model.AuditEntityItem, uuid.New(), &model.Item{})

	require.Len(t, outbox.events, 2)
	assert.NotEqual(t, outbox.events[0].ID, outbox.events[1].ID)
}
