package visit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missioncare/intake-api/internal/middleware"
	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/pkg/errors"
)

type fakeVisitService struct {
	visit *model.Visit
	err   error

	gotPriority model.VisitPriority
}

func (s *fakeVisitService) CheckIn(ctx context.Context, actor model.Actor, beneficiaryID uuid.UUID, priority model.VisitPriority) (*model.Visit, error) {
	s.gotPriority = priority
	return s.visit, s.err
}

func (s *fakeVisitService) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	return s.visit, s.err
}

func (s *fakeVisitService) RecordTriage(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.RecordTriageRequest) (*model.Visit, error) {
	return s.visit, s.err
}

func (s *fakeVisitService) StartConsultation(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*model.Visit, error) {
	return s.visit, s.err
}

func (s *fakeVisitService) RecordConsultation(ctx context.Context, actor model.Actor, visitID uuid.UUID, req *model.RecordConsultationRequest) (*model.Visit, error) {
	return s.visit, s.err
}

type fakeQueueService struct {
	visits []*model.Visit
	counts map[model.VisitStatus]int
	err    error
}

func (s *fakeQueueService) QueueFor(ctx context.Context, status model.VisitStatus) ([]*model.Visit, error) {
	return s.visits, s.err
}

func (s *fakeQueueService) NextUp(ctx context.Context, status model.VisitStatus) (*model.Visit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.visits) == 0 {
		return nil, nil
	}
	return s.visits[0], nil
}

func (s *fakeQueueService) Counts(ctx context.Context) (map[model.VisitStatus]int, error) {
	return s.counts, s.err
}

func newTestRouter(visits *fakeVisitService, queues *fakeQueueService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	// stand-in for the auth middleware
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.ContextActor, &model.Actor{ID: uuid.New(), Name: "Nurse Ana"})
		c.Next()
	})

	NewHandler(visits, queues).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckInEndpoint(t *testing.T) {
	visits := &fakeVisitService{visit: &model.Visit{
		Base:   model.Base{ID: uuid.New()},
		Status: model.VisitStatusTriage,
	}}
	router := newTestRouter(visits, &fakeQueueService{})

	w := perform(router, http.MethodPost, "/api/v1/visits", gin.H{
		"beneficiary_id": uuid.New().String(),
		"priority":       "emergency",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, model.PriorityEmergency, visits.gotPriority)
}

func TestCheckInEndpointRejectsBadBody(t *testing.T) {
	router := newTestRouter(&fakeVisitService{}, &fakeQueueService{})

	w := perform(router, http.MethodPost, "/api/v1/visits", gin.H{"priority": "normal"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(router, http.MethodPost, "/api/v1/visits", gin.H{"beneficiary_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckInEndpointConflict(t *testing.T) {
	visits := &fakeVisitService{err: errors.Conflict("beneficiary already has a visit today", nil)}
	router := newTestRouter(visits, &fakeQueueService{})

	w := perform(router, http.MethodPost, "/api/v1/visits", gin.H{
		"beneficiary_id": uuid.New().String(),
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRecordTriageEndpointStaleStage(t *testing.T) {
	visits := &fakeVisitService{err: errors.Consistency("visit stage changed concurrently, reload and retry", nil)}
	router := newTestRouter(visits, &fakeQueueService{})

	w := perform(router, http.MethodPost, "/api/v1/visits/"+uuid.NewString()+"/triage", gin.H{
		"blood_pressure": "120/80",
		"temperature":    "36.7",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Error struct {
			Retryable bool `json:"retryable"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Error.Retryable)
}

func TestQueueEndpoint(t *testing.T) {
	queues := &fakeQueueService{visits: []*model.Visit{
		{Base: model.Base{ID: uuid.New()}, Status: model.VisitStatusWaitingConsultation},
	}}
	router := newTestRouter(&fakeVisitService{}, queues)

	w := perform(router, http.MethodGet, "/api/v1/queues/waiting_consultation", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNextUpEndpointEmptyQueue(t *testing.T) {
	router := newTestRouter(&fakeVisitService{}, &fakeQueueService{})

	w := perform(router, http.MethodGet, "/api/v1/queues/triage/next", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetVisitNotFound(t *testing.T) {
	visits := &fakeVisitService{err: errors.NotFound("visit", nil)}
	router := newTestRouter(visits, &fakeQueueService{})

	w := perform(router, http.MethodGet, "/api/v1/visits/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
