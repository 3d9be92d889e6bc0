package ingest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/metrics"
)

// Aggregator tracks per-source progress through the Pending → Running →
// {Completed, Failed} state machine and classifies unit-level failures.
// A source only reaches Failed when no starting unit could be computed;
// every other failure is a recorded UnitOutcome on a source that still
// completes. Forward progress beats all-or-nothing purity: a missed unit is
// re-attempted by the next run's lookback window, a run that never happened
// is not.
type Aggregator struct {
	mu      sync.Mutex
	order   []string
	reports map[string]*model.SourceReport
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator with every source Pending. m may be nil.
func NewAggregator(sourceIDs []string, m *metrics.Metrics) *Aggregator {
	reports := make(map[string]*model.SourceReport, len(sourceIDs))
	for _, id := range sourceIDs {
		reports[id] = &model.SourceReport{SourceID: id, State: model.StatePending}
	}
	return &Aggregator{
		order:   append([]string(nil), sourceIDs...),
		reports: reports,
		metrics: m,
		logger:  slog.Default().With("component", "run-aggregator"),
	}
}

// StartSource transitions a source to Running with its planned unit range.
func (a *Aggregator) StartSource(sourceID string, plan Plan) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.reports[sourceID]
	r.State = model.StateRunning
	r.PlannedStart = plan.Start
	r.PlannedEnd = plan.End
	r.DegradedPlan = plan.Degraded
}

// UnitSucceeded records a successfully ingested unit.
func (a *Aggregator) UnitSucceeded(sourceID string, unit, inserted int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.reports[sourceID]
	r.UnitsAttempted++
	r.UnitsSucceeded++
	r.RecordsInserted += inserted
	if a.metrics != nil {
		a.metrics.UnitOutcomesTotal.WithLabelValues(sourceID, "ok").Inc()
	}
}

// UnitFailed classifies a unit failure and records its outcome. The source
// stays Running.
func (a *Aggregator) UnitFailed(sourceID string, unit int, err error) {
	class := apperrors.Classify(err)
	outcome := model.UnitOutcome{
		SourceID:   sourceID,
		Unit:       unit,
		Class:      class,
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	}

	a.mu.Lock()
	r := a.reports[sourceID]
	r.UnitsAttempted++
	r.UnitsFailed++
	r.Outcomes = append(r.Outcomes, outcome)
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.UnitOutcomesTotal.WithLabelValues(sourceID, string(class)).Inc()
	}
	a.logger.Error("unit failed",
		"source", sourceID,
		"unit", unit,
		"class", string(class),
		"error", err,
	)
}

// CompleteSource transitions a source to Completed. Partial unit failures
// are acceptable here.
func (a *Aggregator) CompleteSource(sourceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports[sourceID].State = model.StateCompleted
}

// FailSource transitions a source to Failed. Reached only from a scheduler
// fatal: the source could not establish a starting unit.
func (a *Aggregator) FailSource(sourceID string, err error) {
	a.mu.Lock()
	r := a.reports[sourceID]
	r.State = model.StateFailed
	r.Error = err.Error()
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.UnitOutcomesTotal.WithLabelValues(sourceID, string(apperrors.Classify(err))).Inc()
	}
	a.logger.Error("source failed", "source", sourceID, "error", err)
}

// Outcomes returns every recorded unit outcome across all sources.
func (a *Aggregator) Outcomes() []model.UnitOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	var outcomes []model.UnitOutcome
	for _, id := range a.order {
		outcomes = append(outcomes, a.reports[id].Outcomes...)
	}
	return outcomes
}

// Report assembles the final run report. Run-level success requires every
// source to have reached Completed.
func (a *Aggregator) Report(runID string, startedAt time.Time) *model.RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := &model.RunReport{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Success:    true,
	}
	for _, id := range a.order {
		src := *a.reports[id]
		if src.State != model.StateCompleted {
			report.Success = false
		}
		report.Sources = append(report.Sources, src)
	}
	return report
}
