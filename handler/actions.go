package handler

import (
	"net/http"

	"nfcunha/deckhand/core/repository"

	"github.com/gin-gonic/gin"
)

// ActionHandler exposes the audit trail.
type ActionHandler struct {
	actions *repository.ActionLogRepository
}

// NewActionHandler creates a new action handler.
func NewActionHandler(actions *repository.ActionLogRepository) *ActionHandler {
	return &ActionHandler{actions: actions}
}

// ListActions handles GET /actions
// Query parameters:
//   - resource_type: container | image
//   - resource_id: string
//   - action: string (start, stop, pull, ...)
//   - limit, offset: integers
func (h *ActionHandler) ListActions(c *gin.Context) {
	filter := repository.ActionFilter{
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
		ActionType:   c.Query("action"),
		Limit:        queryInt(c, "limit", repository.DefaultLimit),
		Offset:       queryInt(c, "offset", 0),
	}

	actions, err := h.actions.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to list actions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actions": actions,
		"count":   len(actions),
	})
}

// ListContainerActions handles GET /containers/:id/actions
func (h *ActionHandler) ListContainerActions(c *gin.Context) {
	filter := repository.ActionFilter{
		ResourceType: "container",
		ResourceID:   c.Param("id"),
		Limit:        queryInt(c, "limit", repository.DefaultLimit),
		Offset:       queryInt(c, "offset", 0),
	}

	actions, err := h.actions.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to list actions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actions": actions,
		"count":   len(actions),
	})
}
