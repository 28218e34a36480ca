package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/telemetry"
)

// Machine-readable error codes returned in the envelope.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeUnauthorized      = "unauthorized"
	CodeInvalidTransition = "invalid_transition"
	CodeConflict          = "conflict"
	CodePayloadTooLarge   = "payload_too_large"
	CodeUnsupportedMedia  = "unsupported_media_type"
	CodeRateLimited       = "rate_limited"
	CodeStorage           = "storage_error"
	CodeInternal          = "internal_error"
)

// Problem is the body of every error response:
//
//	{"error": {"code": "...", "message": "...", "details": ...}}
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type envelope struct {
	Error Problem `json:"error"`
}

// Error aborts the request with the error envelope and logs it with the
// request, session and lead identifiers present on the context.
func Error(c *gin.Context, status int, code, message string, details any) {
	logProblem(c, status, code, message)
	c.AbortWithStatusJSON(status, envelope{Error: Problem{Code: code, Message: message, Details: details}})
}

// Validation is Error with status 400 and CodeValidation.
func Validation(c *gin.Context, message string, details any) {
	Error(c, http.StatusBadRequest, CodeValidation, message, details)
}

// NotFound is Error with status 404 and CodeNotFound.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// Internal is Error with status 500 and CodeInternal.
func Internal(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeInternal, message, nil)
}

func logProblem(c *gin.Context, status int, code, message string) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"method":     c.Request.Method,
		"route":      c.FullPath(),
		"request_id": c.GetString("requestId"),
	}
	for key, field := range map[string]string{"sessionId": "session_id", "leadId": "lead_id"} {
		if v := c.GetString(key); v != "" {
			fields[field] = v
		}
	}
	if fields["route"] == "" {
		fields["route"] = c.Request.URL.Path
	}

	switch {
	case status >= http.StatusInternalServerError:
		telemetry.Error("http.error", fields)
	case status == http.StatusTooManyRequests:
		telemetry.Info("http.error", fields)
	default:
		telemetry.Warn("http.error", fields)
	}
}
