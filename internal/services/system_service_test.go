package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/repositories"
)

func TestSystemServiceHealthReport(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "store", Critical: true, Check: func(context.Context) error { return nil }},
		{Name: "locations", Check: func(context.Context) error { return errors.New("empty") }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: health, Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["store"].Status != domain.HealthStatusOK {
		t.Fatalf("unexpected store check %+v", report.Checks["store"])
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error without health repository")
	}
}
