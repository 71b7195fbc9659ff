package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/middleware/requestid"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit creates a middleware that records audit logs after successful requests.
func Audit(repo AuditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var adminID *string
		if claims := ClaimsFrom(c); claims != nil {
			id := claims.AdminID
			adminID = &id
		}
		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		details := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		if reqID := requestid.FromContext(c.Request.Context()); reqID != "" {
			details["request_id"] = reqID
		}
		body, _ := json.Marshal(details)

		if err := repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			AdminID:    adminID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  models.AuditValues(body),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}); err != nil {
			logger.Warn("failed to record audit log",
				zap.String("action", action),
				zap.String("resource", resource),
				zap.String("request_id", requestid.FromContext(c.Request.Context())),
				zap.Error(err))
		}
	}
}
