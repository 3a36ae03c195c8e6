package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-sync/internal/apperrors"
)

// respondError translates the application error taxonomy into HTTP
// statuses. Remote errors surface only when the local fallback also
// failed, so they map to 503 rather than a retryable 502.
func respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsStorage(err):
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": err.Error()})
	case apperrors.IsRemote(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
	}
}
