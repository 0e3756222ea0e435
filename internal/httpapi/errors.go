package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel/internal/apperr"
)

// respondError maps the apperr taxonomy to HTTP status codes; anything
// unrecognized is surfaced as an opaque 500 without a stack trace.
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.Is(err, apperr.ErrValidation), apperr.Is(err, apperr.ErrOptionDataUnavailable), apperr.Is(err, apperr.ErrInsufficientData):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
	case apperr.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case apperr.Is(err, apperr.ErrTierDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "tier", "upgrade_required": true})
	case apperr.Is(err, apperr.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "quota_exceeded"})
	case apperr.Is(err, apperr.ErrDataFetchError):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream_unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
