package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// Pinger is anything with a connectivity check
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports dependency health
type HealthController struct {
	db    Pinger
	redis goredis.UniversalClient
}

// NewHealthController creates a new HealthController. redis may be nil.
func NewHealthController(db Pinger, redis goredis.UniversalClient) *HealthController {
	return &HealthController{db: db, redis: redis}
}

// Health checks the database and, when configured, redis
// @Summary Health check
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthController) Health(ctx *gin.Context) {
	c, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok"}

	if err := h.db.Ping(c); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	if h.redis != nil {
		body["redis"] = "ok"
		if err := h.redis.Ping(c).Err(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["redis"] = err.Error()
		}
	}

	ctx.JSON(status, body)
}

// Ping answers pong
// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ping [get]
func (h *HealthController) Ping(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": "pong"})
}
