package health

import (
	"context"
	"errors"
	"testing"
)

func TestReadyWithoutChecks(t *testing.T) {
	report := NewService().Ready(context.Background())
	if !report.OK || len(report.Checks) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestReadyReportsFailures(t *testing.T) {
	svc := NewService()
	svc.Register("database", func(context.Context) error { return nil })
	svc.Register("redis", func(context.Context) error { return errors.New("connection refused") })

	report := svc.Ready(context.Background())
	if report.OK {
		t.Fatalf("expected not ready")
	}
	if report.Checks["database"] != "ok" || report.Checks["redis"] != "connection refused" {
		t.Fatalf("checks = %+v", report.Checks)
	}
}

func TestStatus(t *testing.T) {
	if !NewService().Status()["ok"] {
		t.Fatalf("status should be ok")
	}
}
