package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/analysis"
	"mirror-backend/internal/intake"
	"mirror-backend/internal/leads"
	"mirror-backend/internal/services/health"
	"mirror-backend/internal/shared/config"
	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/server/middleware"
	"mirror-backend/internal/shared/server/respond"
)

// RouterDeps are the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config   config.Config
	Analysis *analysis.Handler
	Intake   *intake.Handler
	Admin    *leads.Handler
	Health   *health.Service
	Verifier middleware.TokenVerifier
	Limiter  *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	if !cfg.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateRules(cfg),
			GroupFor: rateGroup,
			Limiter:  deps.Limiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})
	api.GET("/ready", func(c *gin.Context) {
		report := healthSvc.Ready(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	if deps.Analysis != nil {
		deps.Analysis.RegisterRoutes(api)
	}
	if deps.Intake != nil {
		deps.Intake.RegisterRoutes(api)
	}
	if deps.Admin != nil && deps.Verifier != nil {
		deps.Admin.RegisterRoutes(api, middleware.AdminAuth(deps.Verifier))
	}

	r.NoRoute(func(c *gin.Context) {
		respond.NotFound(c, "route not found")
	})
	return r
}

func rateRules(cfg config.Config) map[string]middleware.RateLimitRule {
	perMin, burst := cfg.AnalysisRatePerMin, cfg.AnalysisBurst
	if perMin <= 0 {
		perMin = 10
	}
	if burst <= 0 {
		burst = 5
	}
	return map[string]middleware.RateLimitRule{
		middleware.GroupAnalysis: middleware.PerMinute(perMin, burst),
		middleware.GroupLogin:    middleware.PerMinute(5, 5),
	}
}

// rateGroup buckets the routes that run a model call, create a lead or check
// the admin password.
func rateGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case path == "/api/v1/analysis",
		strings.HasSuffix(path, "/intake/sessions/:id/intake"),
		strings.HasSuffix(path, "/intake/sessions/:id/contact"):
		return middleware.GroupAnalysis
	case path == "/api/v1/admin/login":
		return middleware.GroupLogin
	default:
		return middleware.GroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
