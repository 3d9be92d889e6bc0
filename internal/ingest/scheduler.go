package ingest

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

// watermarkGetter reads the per-source last-synced unit.
type watermarkGetter interface {
	Get(ctx context.Context, sourceID string) (int, bool, error)
}

// storedUnitGetter reads the highest stored unit for a source, for the
// frontier fallback.
type storedUnitGetter interface {
	MaxUnit(ctx context.Context, sourceID string) (int, bool, error)
}

// frontierQuerier asks the provider for its latest known unit.
type frontierQuerier interface {
	LatestUnit(ctx context.Context) (int, error)
}

// Plan is the unit range a source should (re)fetch this run.
type Plan struct {
	Start int
	End   int

	// Degraded is set when the provider frontier query failed and the end
	// unit had to be derived from stored data plus the lookback margin.
	// A degraded plan signals provider API degradation worth operator
	// attention, so it is surfaced in the run report rather than silently
	// accepted.
	Degraded bool
}

// Units returns the number of units the plan covers.
func (p Plan) Units() int {
	return p.End - p.Start + 1
}

// Scheduler computes the unit window per source: the stored watermark minus
// a safety lookback, up to the provider's live frontier. Re-fetching a unit
// that yields only known records is cheap, the guard discards everything.
type Scheduler struct {
	watermarks watermarkGetter
	records    storedUnitGetter
	lookback   int
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler with the given lookback window.
func NewScheduler(watermarks watermarkGetter, records storedUnitGetter, lookback int) *Scheduler {
	if lookback < 1 {
		lookback = 1
	}
	return &Scheduler{
		watermarks: watermarks,
		records:    records,
		lookback:   lookback,
		logger:     slog.Default().With("component", "scheduler"),
	}
}

// PlanUnits determines the fetch range for one source. The provider's
// frontier query is preferred for the end unit; when it fails, the bounded
// fallback is max(stored unit, watermark) + lookback, flagged as degraded.
// With no watermark, no stored data, and no frontier there is no computable
// starting point, which is the sole source-fatal condition.
func (s *Scheduler) PlanUnits(ctx context.Context, sourceID string, frontier frontierQuerier) (Plan, error) {
	watermark, hasWatermark, err := s.watermarks.Get(ctx, sourceID)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %v", apperrors.ErrSchedulerFatal, err)
	}

	plan := Plan{}
	latest, frontierErr := frontier.LatestUnit(ctx)
	if frontierErr == nil {
		plan.End = latest
	} else {
		s.logger.Warn("frontier query failed, falling back to stored data",
			"source", sourceID,
			"error", frontierErr,
		)
		maxStored, hasStored, err := s.records.MaxUnit(ctx, sourceID)
		if err != nil {
			return Plan{}, fmt.Errorf("%w: %v", apperrors.ErrSchedulerFatal, err)
		}
		if !hasStored && !hasWatermark {
			return Plan{}, fmt.Errorf("%w: source %s has no watermark, no stored data, and frontier query failed: %v",
				apperrors.ErrSchedulerFatal, sourceID, frontierErr)
		}
		// The watermark can sit above the stored max when trailing units
		// yielded nothing; take whichever is further along.
		base := maxStored
		if hasWatermark && watermark > base {
			base = watermark
		}
		plan.End = base + s.lookback
		plan.Degraded = true
	}

	if hasWatermark {
		plan.Start = watermark - s.lookback + 1
		if plan.Start < 0 {
			plan.Start = 0
		}
	}
	if plan.Start > plan.End {
		// Watermark beyond the reported frontier: the provider regressed or
		// the fallback undershot. Re-check just the trailing window.
		s.logger.Warn("plan start beyond end, clamping",
			"source", sourceID,
			"start", plan.Start,
			"end", plan.End,
		)
		plan.Start = plan.End
	}

	s.logger.Info("planned unit range",
		"source", sourceID,
		"start", plan.Start,
		"end", plan.End,
		"units", plan.Units(),
		"degraded", plan.Degraded,
	)
	return plan, nil
}
