package narrative

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"mirror-backend/internal/shared/telemetry"
)

const retryDelay = 300 * time.Millisecond

// Retrying retries a generator once after a short pause on transient failures.
type Retrying struct {
	Base  Generator
	Delay time.Duration
}

// WithRetry wraps gen. A nil gen stays nil.
func WithRetry(gen Generator) Generator {
	if gen == nil {
		return nil
	}
	return &Retrying{Base: gen, Delay: retryDelay}
}

func (r *Retrying) Name() string { return r.Base.Name() }

func (r *Retrying) Explain(ctx context.Context, req Request) (Explanation, error) {
	out, err := r.Base.Explain(ctx, req)
	if err == nil || !shouldRetry(err) {
		return out, err
	}

	telemetry.Warn("narrative.retry", map[string]any{
		"provider": r.Base.Name(),
		"attempt":  1,
		"error":    err,
	})
	select {
	case <-time.After(r.Delay):
	case <-ctx.Done():
		return Explanation{}, ctx.Err()
	}
	return r.Base.Explain(ctx, req)
}

func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"http status 5", "server_error", "timeout", "unavailable", "resource_exhausted",
		"connection reset", "connection refused", "broken pipe", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
