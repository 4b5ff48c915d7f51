// Package handler provides the gin HTTP handlers of the Deckhand API.
package handler

import (
	"errors"
	"net/http"

	"nfcunha/deckhand/core/models"

	"github.com/gin-gonic/gin"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidBuildContext):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidStatsFormat):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrRuntimeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the standard error body with the status of err's kind.
func respondError(c *gin.Context, message string, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":  message,
		"detail": err.Error(),
	})
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  message,
		"detail": err.Error(),
	})
}
