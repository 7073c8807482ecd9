package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/missioncare/intake-api/pkg/messaging"
)

type Handler struct {
	db     *sqlx.DB
	broker messaging.Broker
}

func NewHandler(db *sqlx.DB, broker messaging.Broker) *Handler {
	return &Handler{db: db, broker: broker}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck verifies the database connection. The broker is reported
// but does not fail readiness: the outbox buffers events while it is down.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "database connection failed",
		})
		return
	}

	brokerStatus := "UP"
	if h.broker != nil {
		if err := h.broker.Ping(ctx); err != nil {
			brokerStatus = "DOWN"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"broker": brokerStatus,
	})
}
