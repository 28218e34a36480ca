package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mirror-backend/internal/shared/server/respond"
)

// Rate limit groups used by the router.
const (
	GroupDefault  = "DEFAULT"
	GroupAnalysis = "ANALYSIS"
	GroupLogin    = "LOGIN"
)

const bucketIdleTTL = 10 * time.Minute

// RateLimitRule refills Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// PerMinute builds a rule from a requests-per-minute figure.
func PerMinute(perMin float64, burst int) RateLimitRule {
	return RateLimitRule{Rate: perMin / 60, Burst: burst}
}

func (r RateLimitRule) enabled() bool { return r.Rate > 0 && r.Burst > 0 }

type RateLimitConfig struct {
	Rules map[string]RateLimitRule
	// DefaultGroup applies when GroupFor is nil or returns "".
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one token bucket per client and group. Buckets idle for
// longer than bucketIdleTTL are evicted.
type RateLimiter struct {
	mu        sync.Mutex
	now       func() time.Time
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{now: now, buckets: map[string]*bucket{}}
}

// RateLimit answers 429 with a Retry-After header once a client has spent
// its bucket for the request's group. Admins are keyed by subject, everyone
// else by client IP.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(nil)
	}
	fallback := cfg.DefaultGroup
	if fallback == "" {
		fallback = GroupDefault
	}

	return func(c *gin.Context) {
		group := fallback
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}

		client := strings.TrimSpace(AdminFromContext(c))
		if client == "" {
			client = c.ClientIP()
		}
		allowed, wait := limiter.Allow(group+":"+client, rule)
		if allowed {
			c.Next()
			return
		}

		if wait < time.Millisecond {
			wait = time.Second
		}
		c.Header("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
		respond.Error(c, http.StatusTooManyRequests, respond.CodeRateLimited, "Too many requests", gin.H{
			"retryAfterMs": wait.Milliseconds(),
		})
	}
}

// Allow takes one token for key. When the bucket is empty it returns the
// time until the next token without consuming anything.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || !rule.enabled() {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rule.Rate), rule.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len reports the number of tracked buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < bucketIdleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}
