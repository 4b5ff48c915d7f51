package handler

import (
	"net/http"
	"strconv"

	"nfcunha/deckhand/core/command"
	"nfcunha/deckhand/core/service"

	"github.com/gin-gonic/gin"
)

// ContainerHandler handles container-related HTTP requests.
type ContainerHandler struct {
	containerService *service.ContainerService
	statsCache       *service.StatsCache
}

// NewContainerHandler creates a new container handler.
func NewContainerHandler(containerService *service.ContainerService, statsCache *service.StatsCache) *ContainerHandler {
	return &ContainerHandler{
		containerService: containerService,
		statsCache:       statsCache,
	}
}

// ListContainers handles GET /containers
func (h *ContainerHandler) ListContainers(c *gin.Context) {
	containers, err := h.containerService.ListContainers(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list containers", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"containers": containers,
		"count":      len(containers),
	})
}

// GetContainer handles GET /containers/:id
func (h *ContainerHandler) GetContainer(c *gin.Context) {
	detail, err := h.containerService.GetContainer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to inspect container", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// GetStats handles GET /containers/:id/stats
func (h *ContainerHandler) GetStats(c *gin.Context) {
	stats, err := h.containerService.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get container stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Command returns the handler of POST /containers/:id/<name> (and DELETE for "delete").
func (h *ContainerHandler) Command(name string) gin.HandlerFunc {
	cmd, ok := command.Lookup(name)
	if !ok {
		panic("unknown container command: " + name)
	}

	return func(c *gin.Context) {
		containerID := c.Param("id")

		if err := h.containerService.ExecuteCommand(c.Request.Context(), containerID, cmd); err != nil {
			respondError(c, command.FailureMessage(cmd), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": command.SuccessMessage(cmd),
			"id":      containerID,
		})
	}
}

// GetDashboardSummary handles GET /dashboard/summary
func (h *ContainerHandler) GetDashboardSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.statsCache.GetDashboardSummary())
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value := c.Query(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
