package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks runtime reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports server and runtime liveness.
type HealthHandler struct {
	runtime Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(runtime Pinger) *HealthHandler {
	return &HealthHandler{runtime: runtime}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.runtime.Ping(ctx); err != nil {
		c.JSON(statusFor(err), gin.H{
			"status":  "degraded",
			"runtime": "unavailable",
			"detail":  err.Error(),
			"time":    time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"runtime": "up",
		"time":    time.Now(),
	})
}
