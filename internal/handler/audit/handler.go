package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/missioncare/intake-api/internal/handler"
	"github.com/missioncare/intake-api/internal/model"
	"github.com/missioncare/intake-api/internal/service/audit"
	"github.com/missioncare/intake-api/pkg/httputil"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	logs := r.Group("/audit-logs")
	{
		logs.GET("", h.List)
		logs.GET("/stats", h.GetAggregateStats)
	}
}

func (h *Handler) List(c *gin.Context) {
	var filters model.AuditFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	filters.Pagination.Normalize()

	logs, total, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, httputil.PaginatedResponse{
		Data: logs,
		Pagination: httputil.Pagination{
			Page:     filters.Page,
			PageSize: filters.PageSize,
			Total:    int(total),
		},
	})
}

func (h *Handler) GetAggregateStats(c *gin.Context) {
	var filters model.AuditFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	stats, err := h.service.GetAggregateStats(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}
