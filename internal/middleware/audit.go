package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-grading-api/internal/models"
	"github.com/noah-isme/fyp-grading-api/pkg/middleware/requestid"
)

const (
	auditResourceKey  = "audit.resourceID"
	auditWriteTimeout = 3 * time.Second
)

// AuditWriter persists audit records.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResource names the record a handler acted on when the route does not
// carry it as :id.
func SetAuditResource(c *gin.Context, id string) {
	if id != "" {
		c.Set(auditResourceKey, id)
	}
}

// Audit records one entry per request that completes below 400. Write failures
// are attached to the gin context so the access log reports them.
func Audit(writer AuditWriter, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if writer == nil || status >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if id := UserID(c); id != "" {
			entry.UserID = &id
		}
		if id := auditResource(c); id != "" {
			entry.ResourceID = &id
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"route":      c.FullPath(),
			"method":     c.Request.Method,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": requestid.Value(c),
		})

		// The request may already be cancelled by the time the body is flushed.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), auditWriteTimeout)
		defer cancel()
		if err := writer.CreateAuditLog(ctx, entry); err != nil {
			_ = c.Error(err)
		}
	}
}

func auditResource(c *gin.Context) string {
	if id := c.GetString(auditResourceKey); id != "" {
		return id
	}
	return c.Param("id")
}
