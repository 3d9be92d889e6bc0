package ingest

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

type fakeWatermarks struct {
	unit  int
	found bool
	err   error
}

func (f *fakeWatermarks) Get(ctx context.Context, sourceID string) (int, bool, error) {
	return f.unit, f.found, f.err
}

type fakeStoredUnits struct {
	max   int
	found bool
	err   error
}

func (f *fakeStoredUnits) MaxUnit(ctx context.Context, sourceID string) (int, bool, error) {
	return f.max, f.found, f.err
}

type fakeFrontier struct {
	latest int
	err    error
}

func (f *fakeFrontier) LatestUnit(ctx context.Context) (int, error) {
	return f.latest, f.err
}

func TestPlanWithWatermarkAndFrontier(t *testing.T) {
	s := NewScheduler(&fakeWatermarks{unit: 100, found: true}, &fakeStoredUnits{}, 7)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{latest: 120})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Start != 94 || plan.End != 120 {
		t.Errorf("expected [94, 120], got [%d, %d]", plan.Start, plan.End)
	}
	if plan.Degraded {
		t.Error("plan must not be degraded when the frontier answered")
	}
	if plan.Units() != 27 {
		t.Errorf("expected 27 units, got %d", plan.Units())
	}
}

func TestPlanFirstRunStartsAtZero(t *testing.T) {
	s := NewScheduler(&fakeWatermarks{}, &fakeStoredUnits{}, 7)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{latest: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Start != 0 || plan.End != 5 {
		t.Errorf("expected [0, 5], got [%d, %d]", plan.Start, plan.End)
	}
}

func TestPlanStartNeverNegative(t *testing.T) {
	s := NewScheduler(&fakeWatermarks{unit: 3, found: true}, &fakeStoredUnits{}, 7)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{latest: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Start != 0 {
		t.Errorf("expected start clamped to 0, got %d", plan.Start)
	}
}

func TestPlanFrontierDownFallsBackToStored(t *testing.T) {
	s := NewScheduler(
		&fakeWatermarks{unit: 90, found: true},
		&fakeStoredUnits{max: 95, found: true},
		7,
	)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{err: apperrors.ErrNetwork})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.End != 102 {
		t.Errorf("expected end = stored max + lookback = 102, got %d", plan.End)
	}
	if !plan.Degraded {
		t.Error("fallback plan must be flagged degraded")
	}
}

func TestPlanFallbackPrefersWatermarkWhenHigher(t *testing.T) {
	// Trailing units all failed, so the stored max trails the watermark.
	// The degraded end must follow the watermark, not clamp to stale data.
	s := NewScheduler(
		&fakeWatermarks{unit: 100, found: true},
		&fakeStoredUnits{max: 95, found: true},
		7,
	)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{err: apperrors.ErrNetwork})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.End != 107 {
		t.Errorf("expected end = watermark + lookback = 107, got %d", plan.End)
	}
	if !plan.Degraded {
		t.Error("fallback plan must be flagged degraded")
	}
}

func TestPlanFrontierDownFallsBackToWatermark(t *testing.T) {
	s := NewScheduler(&fakeWatermarks{unit: 90, found: true}, &fakeStoredUnits{}, 7)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{err: apperrors.ErrTimeout})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.End != 97 || !plan.Degraded {
		t.Errorf("expected degraded end 97, got end=%d degraded=%v", plan.End, plan.Degraded)
	}
}

func TestPlanNothingToGoOnIsFatal(t *testing.T) {
	s := NewScheduler(&fakeWatermarks{}, &fakeStoredUnits{}, 7)
	_, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{err: apperrors.ErrNetwork})
	if !errors.Is(err, apperrors.ErrSchedulerFatal) {
		t.Fatalf("expected ErrSchedulerFatal, got %v", err)
	}
}

func TestPlanWatermarkReadErrorIsFatal(t *testing.T) {
	s := NewScheduler(&fakeWatermarks{err: errors.New("db down")}, &fakeStoredUnits{}, 7)
	_, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{latest: 10})
	if !errors.Is(err, apperrors.ErrSchedulerFatal) {
		t.Fatalf("expected ErrSchedulerFatal, got %v", err)
	}
}

func TestPlanClampsStartBeyondEnd(t *testing.T) {
	// Provider frontier regressed below the watermark.
	s := NewScheduler(&fakeWatermarks{unit: 200, found: true}, &fakeStoredUnits{}, 3)
	plan, err := s.PlanUnits(context.Background(), "perseverance", &fakeFrontier{latest: 150})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Start != plan.End || plan.End != 150 {
		t.Errorf("expected clamped single-unit plan at 150, got [%d, %d]", plan.Start, plan.End)
	}
	if plan.Units() != 1 {
		t.Errorf("expected 1 unit, got %d", plan.Units())
	}
}
