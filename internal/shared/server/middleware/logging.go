package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can correlate wizard traffic.
const (
	SessionIDKey  = "sessionId"
	LeadIDKey     = "leadId"
	TransitionKey = "stateTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"session_id":  stringFromContext(c, SessionIDKey),
			"lead_id":     stringFromContext(c, LeadIDKey),
			"transition":  stringFromContext(c, TransitionKey),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if admin := AdminFromContext(c); admin != "" {
			fields["admin"] = admin
		}
		telemetry.Info("request.complete", fields)
	}
}
