package middleware

import (
	"net/http"

	"nfcunha/deckhand/core/models"

	"github.com/gin-gonic/gin"
)

// ValidateContainerID rejects requests whose :id parameter is not a full container id.
func ValidateContainerID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("id"); !models.IsContainerID(id) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":  "Invalid container ID",
				"detail": "container id must be 64 lowercase hexadecimal characters",
			})
			return
		}
		c.Next()
	}
}
