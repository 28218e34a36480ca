package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/server/respond"
	"mirror-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error envelope. A response that
// has already started is left as is and the request is aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			telemetry.Error("request.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"session_id": stringFromContext(c, SessionIDKey),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"error":      rec,
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Internal(c, "Unexpected server error")
			c.Abort()
		}()
		c.Next()
	}
}
