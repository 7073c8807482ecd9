package visit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/missioncare/intake-api/internal/handler"
	"github.com/missioncare/intake-api/internal/middleware"
	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/service/queue"
	"github.com/missioncare/intake-api/internal/service/visit"
	"github.com/missioncare/intake-api/pkg/httputil"
)

type Handler struct {
	visits visit.VisitService
	queues queue.QueueService
}

func NewHandler(visits visit.VisitService, queues queue.QueueService) *Handler {
	return &Handler{visits: visits, queues: queues}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	visits := r.Group("/visits")
	{
		visits.POST("", h.CheckIn)
		visits.GET("/:id", h.GetVisit)
		visits.POST("/:id/triage", h.RecordTriage)
		visits.POST("/:id/consultation/start", h.StartConsultation)
		visits.POST("/:id/consultation", h.RecordConsultation)
	}

	queues := r.Group("/queues")
	{
		queues.GET("", h.QueueCounts)
		queues.GET("/:status", h.Queue)
		queues.GET("/:status/next", h.NextUp)
	}
}

func (h *Handler) CheckIn(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	var req model.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	beneficiaryID, err := uuid.Parse(req.BeneficiaryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid beneficiary ID"))
		return
	}

	v, err := h.visits.CheckIn(c.Request.Context(), *actor, beneficiaryID, model.VisitPriority(req.Priority))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, v)
}

func (h *Handler) GetVisit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid visit ID"))
		return
	}

	v, err := h.visits.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) RecordTriage(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid visit ID"))
		return
	}

	var req model.RecordTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	v, err := h.visits.RecordTriage(c.Request.Context(), *actor, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) StartConsultation(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid visit ID"))
		return
	}

	v, err := h.visits.StartConsultation(c.Request.Context(), *actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) RecordConsultation(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid visit ID"))
		return
	}

	var req model.RecordConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	v, err := h.visits.RecordConsultation(c.Request.Context(), *actor, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) Queue(c *gin.Context) {
	status := model.VisitStatus(c.Param("status"))
	visits, err := h.queues.QueueFor(c.Request.Context(), status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visits)
}

func (h *Handler) NextUp(c *gin.Context) {
	status := model.VisitStatus(c.Param("status"))
	v, err := h.queues.NextUp(c.Request.Context(), status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if v == nil {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) QueueCounts(c *gin.Context) {
	counts, err := h.queues.Counts(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, counts)
}
