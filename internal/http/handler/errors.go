package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/service"
)

// respondError maps service errors to status codes. A stream that cannot take
// the work is 503 so callers retry; nothing was accepted.
func respondError(c *gin.Context, err error, action string) {
	ctx := c.Request.Context()

	var (
		verr *service.ValidationError
		terr *queue.TransportError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Error()})
	case errors.Is(err, service.ErrCampaignNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "campaign not found"})
	case errors.As(err, &terr):
		slog.ErrorContext(ctx, "stream unavailable", "action", action, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "queue unavailable, retry later"})
	default:
		slog.ErrorContext(ctx, "request failed", "action", action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to " + action})
	}
}

func badRequest(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "invalid request", "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
