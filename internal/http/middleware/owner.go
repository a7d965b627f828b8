package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/common/logger"
)

// OwnerHeader carries the id of the CRM account a request acts for. Session
// handling lives in front of this service; the id is opaque here.
const OwnerHeader = "X-Owner-ID"

const maxOwnerIDLen = 128

type contextKey string

const ownerContextKey contextKey = "owner_id"

// RequireOwner rejects requests without a usable owner id and attaches it to
// the request context and its log fields.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if owner == "" || len(owner) > maxOwnerIDLen {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + OwnerHeader})
			return
		}

		ctx := context.WithValue(c.Request.Context(), ownerContextKey, owner)
		ctx = logger.WithLogFields(ctx, logger.LogFields{OwnerID: logger.Ptr(owner)})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// OwnerID returns the owner attached by RequireOwner, or "".
func OwnerID(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}
