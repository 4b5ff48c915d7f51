package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"nfcunha/deckhand/core/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LogHandler serves bulk container logs.
type LogHandler struct {
	containerService *service.ContainerService
	logger           *logrus.Logger
}

// NewLogHandler creates a new log handler.
func NewLogHandler(containerService *service.ContainerService, logger *logrus.Logger) *LogHandler {
	return &LogHandler{
		containerService: containerService,
		logger:           logger,
	}
}

// GetLogs handles GET /containers/:id/logs
// Returns the last lines of the container output, formatted.
func (h *LogHandler) GetLogs(c *gin.Context) {
	containerID := c.Param("id")

	logs, err := h.containerService.GetLogs(c.Request.Context(), containerID)
	if err != nil {
		respondError(c, "Failed to get container logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   containerID,
		"logs": logs,
	})
}

// DownloadLogs handles GET /containers/:id/logs/download
// Downloads container logs as a ZIP file.
func (h *LogHandler) DownloadLogs(c *gin.Context) {
	containerID := c.Param("id")

	// Built in memory so a failure can still be reported as JSON.
	var archive bytes.Buffer
	if err := h.containerService.CreateLogArchive(c.Request.Context(), containerID, &archive); err != nil {
		h.logger.WithFields(logrus.Fields{"container_id": containerID, "error": err}).Warn("Failed to create log archive")
		respondError(c, "Failed to create log archive", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=container-%s-logs.zip", shortID(containerID)))
	c.Data(http.StatusOK, "application/zip", archive.Bytes())
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
