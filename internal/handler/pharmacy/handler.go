package pharmacy

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/missioncare/intake-api/internal/handler"
	"github.com/missioncare/intake-api/internal/middleware"
	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/service/advisor"
	"github.com/missioncare/intake-api/internal/service/dispense"
	"github.com/missioncare/intake-api/pkg/httputil"
)

type Handler struct {
	dispenser dispense.DispensationService
	advisor   advisor.AdvisorService
}

func NewHandler(dispenser dispense.DispensationService, advisor advisor.AdvisorService) *Handler {
	return &Handler{dispenser: dispenser, advisor: advisor}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/visits/:id/dispense", h.Dispense)
	r.GET("/recommendations/medications", h.RecommendedMedications)
}

func (h *Handler) Dispense(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid visit ID"))
		return
	}

	var req model.DispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	v, err := h.dispenser.Dispense(c.Request.Context(), *actor, visitID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

func (h *Handler) RecommendedMedications(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	items, err := h.advisor.RecommendedMedications(c.Request.Context(), *actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}
