package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const checkTimeout = 2 * time.Second

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	mu     sync.RWMutex
	checks map[string]Checker
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: map[string]Checker{}}
}

// Register adds a named dependency check.
func (s *Service) Register(name string, check Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Report is the readiness payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Status returns a simple liveness payload.
func (s *Service) Status() map[string]bool {
	return map[string]bool{"ok": true}
}

// Ready runs every registered check and reports "ok" or the error text.
func (s *Service) Ready(ctx context.Context) Report {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Checker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	report := Report{OK: true, Checks: map[string]string{}}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			report.OK = false
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
