package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/telemetry"
)

// CORS allows the configured browser origins. A "*" entry opens every
// origin and turns credentials off. Entries without an http(s) scheme are
// dropped. With no usable origin the middleware is a pass-through and
// browsers fall back to same-origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Retry-After", "Content-Disposition"},
		MaxAge:        10 * time.Minute,
	}

	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			cfg.AllowAllOrigins = true
		case strings.HasPrefix(o, "http://"), strings.HasPrefix(o, "https://"):
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		default:
			telemetry.Warn("cors.origin_ignored", map[string]any{"origin": o})
		}
	}

	if cfg.AllowAllOrigins {
		cfg.AllowOrigins = nil
	} else {
		cfg.AllowCredentials = true
	}
	if !cfg.AllowAllOrigins && len(cfg.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cfg)
}
