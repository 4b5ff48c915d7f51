package handler

import (
	"net/http"

	"nfcunha/deckhand/core/repository"
	"nfcunha/deckhand/core/service"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes recorded health checks and system events.
type AuditHandler struct {
	healthLogs *repository.HealthCheckLogRepository
	events     *repository.EventLogRepository
	statsCache *service.StatsCache
}

// NewAuditHandler creates a new audit handler. statsCache may be nil.
func NewAuditHandler(healthLogs *repository.HealthCheckLogRepository, events *repository.EventLogRepository, statsCache *service.StatsCache) *AuditHandler {
	return &AuditHandler{
		healthLogs: healthLogs,
		events:     events,
		statsCache: statsCache,
	}
}

// GetContainerHealth handles GET /containers/:id/health
// It returns the recorded health checks of the container, newest first, and the
// last cached resource sample (null when the container is not sampled).
func (h *AuditHandler) GetContainerHealth(c *gin.Context) {
	containerID := c.Param("id")

	checks, err := h.healthLogs.ListByContainer(c.Request.Context(), containerID, queryInt(c, "limit", repository.DefaultLimit))
	if err != nil {
		respondError(c, "Failed to list health checks", err)
		return
	}

	var current *service.ResourceSample
	if h.statsCache != nil {
		current = h.statsCache.GetContainerStats(containerID)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      containerID,
		"checks":  checks,
		"count":   len(checks),
		"current": current,
	})
}

// ListEvents handles GET /events
// Query parameters:
//   - type: event type (system, runtime, ...); empty matches every type
//   - limit: integer
func (h *AuditHandler) ListEvents(c *gin.Context) {
	events, err := h.events.List(c.Request.Context(), c.Query("type"), queryInt(c, "limit", repository.DefaultLimit))
	if err != nil {
		respondError(c, "Failed to list events", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
