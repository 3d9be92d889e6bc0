package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/provider"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/tracing"
)

// sourceClient is what the runner needs from a provider client.
type sourceClient interface {
	Fetch(ctx context.Context, unit int) ([]byte, error)
	LatestUnit(ctx context.Context) (int, error)
}

// watermarkSetter advances the per-source watermark.
type watermarkSetter interface {
	Set(ctx context.Context, sourceID string, unit int) error
}

// outcomeSink persists failed-unit outcomes, best-effort.
type outcomeSink interface {
	InsertBatch(ctx context.Context, outcomes []model.UnitOutcome) error
}

// outcomePublisher ships outcomes and the run report to downstream
// consumers, best-effort.
type outcomePublisher interface {
	PublishOutcomes(ctx context.Context, outcomes []model.UnitOutcome) error
	PublishReport(ctx context.Context, report *model.RunReport) error
}

// RunnerParams wires the runner's collaborators. Outcomes, Publisher, and
// Metrics are optional; NewClient defaults to the real provider client and
// exists so tests can substitute fakes.
type RunnerParams struct {
	Sources    []config.SourceConfig
	MaxBatch   int
	Registry   *extract.Registry
	Guard      *Guard
	Resolver   *Resolver
	Writer     *Writer
	Scheduler  *Scheduler
	Watermarks watermarkSetter
	Outcomes   outcomeSink
	Publisher  outcomePublisher
	Metrics    *metrics.Metrics
	NewClient  func(src config.SourceConfig) sourceClient
}

// Runner executes one finite ingestion run across all configured sources.
// Sources run in parallel, one goroutine each; units within a source run
// sequentially so provider load stays bounded and each source's breaker
// failure count stays meaningful.
type Runner struct {
	p      RunnerParams
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) *Runner {
	if p.MaxBatch <= 0 {
		p.MaxBatch = 1000
	}
	if p.NewClient == nil {
		p.NewClient = func(src config.SourceConfig) sourceClient {
			return provider.NewClient(src, p.Metrics)
		}
	}
	return &Runner{
		p:      p,
		logger: logger.WithComponent("ingest-runner"),
	}
}

// RunIngestion runs the whole pipeline once and returns the run report.
// The returned error covers only run-level setup failures (cache warming);
// per-source and per-unit failures live in the report.
func (r *Runner) RunIngestion(ctx context.Context) (*model.RunReport, error) {
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	startedAt := time.Now().UTC()
	ctx = logger.WithRunID(ctx, runID)
	ctx, rootSpan := tracing.StartSpan(ctx, "ingestion-run", runID)
	log := r.logger.With("run_id", runID)
	log.Info("ingestion run starting", "sources", len(r.p.Sources))

	if err := r.p.Resolver.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warming category cache: %w", err)
	}

	sourceIDs := make([]string, len(r.p.Sources))
	for i, src := range r.p.Sources {
		sourceIDs[i] = src.ID
	}
	agg := NewAggregator(sourceIDs, r.p.Metrics)

	g, groupCtx := errgroup.WithContext(ctx)
	for _, src := range r.p.Sources {
		src := src
		g.Go(func() error {
			r.runSource(groupCtx, src, agg)
			return nil
		})
	}
	g.Wait()

	rootSpan.End()
	rootSpan.Log()

	report := agg.Report(runID, startedAt)
	if r.p.Metrics != nil {
		r.p.Metrics.RunDuration.Observe(report.Duration().Seconds())
	}
	r.finishRun(report, agg.Outcomes(), log)
	return report, nil
}

// runSource drives one source through plan → fetch → extract → filter →
// resolve → write, unit by unit. Only a scheduler fatal fails the source;
// unit failures are recorded and the next unit proceeds.
func (r *Runner) runSource(ctx context.Context, src config.SourceConfig, agg *Aggregator) {
	log := logger.FromContext(ctx).With("source", src.ID)
	ctx, span := tracing.StartChildSpan(ctx, "source "+src.ID)
	defer span.End()

	extractFn, err := r.p.Registry.Lookup(src.Schema)
	if err != nil {
		agg.FailSource(src.ID, fmt.Errorf("%w: %v", apperrors.ErrSchedulerFatal, err))
		return
	}

	client := r.p.NewClient(src)
	plan, err := r.p.Scheduler.PlanUnits(ctx, src.ID, client)
	if err != nil {
		agg.FailSource(src.ID, err)
		return
	}
	agg.StartSource(src.ID, plan)
	span.SetAttr("units", plan.Units())

	for unit := plan.Start; unit <= plan.End; unit++ {
		if ctx.Err() != nil {
			log.Warn("run cancelled, abandoning remaining units", "next_unit", unit)
			return
		}
		inserted, err := r.processUnit(ctx, client, extractFn, src, unit)
		if err != nil {
			agg.UnitFailed(src.ID, unit, err)
			continue
		}
		agg.UnitSucceeded(src.ID, unit, inserted)
		log.Info("unit ingested", "unit", unit, "inserted", inserted)
	}
	if ctx.Err() != nil {
		return
	}
	if bs, ok := client.(interface{ BreakerState() resilience.State }); ok {
		span.SetAttr("breaker_state", bs.BreakerState().String())
	}

	agg.CompleteSource(src.ID)
	if err := r.p.Watermarks.Set(context.WithoutCancel(ctx), src.ID, plan.End); err != nil {
		// The source completed; a stale watermark just means extra
		// re-fetching next run, which the guard absorbs.
		log.Warn("watermark update failed", "unit", plan.End, "error", err)
	} else if r.p.Metrics != nil {
		r.p.Metrics.WatermarkUnit.WithLabelValues(src.ID).Set(float64(plan.End))
	}
}

// processUnit runs the full pipeline for one unit and returns how many
// records were inserted.
func (r *Runner) processUnit(ctx context.Context, client sourceClient, extractFn extract.Func, src config.SourceConfig, unit int) (int, error) {
	raw, err := client.Fetch(ctx, unit)
	if err != nil {
		return 0, err
	}

	candidates, err := extractFn(raw, extract.Options{
		SourceID:   src.ID,
		Unit:       unit,
		MinQuality: src.MinQuality,
	})
	if err != nil {
		return 0, err
	}
	if r.p.Metrics != nil {
		r.p.Metrics.RecordsExtractedTotal.WithLabelValues(src.ID).Add(float64(len(candidates)))
	}

	fresh, err := r.p.Guard.Filter(ctx, src.ID, candidates)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	records := make([]model.Record, 0, len(fresh))
	for _, c := range fresh {
		categoryID, err := r.p.Resolver.Resolve(ctx, src.ID, c.CategoryCode)
		if err != nil {
			return 0, err
		}
		records = append(records, model.Record{
			NaturalKey: c.NaturalKey,
			Unit:       c.Unit,
			SourceID:   src.ID,
			CategoryID: categoryID,
			CapturedAt: c.CapturedAt,
			Core:       c.Core,
			Raw:        c.Raw,
		})
	}

	// Once the write starts, the transaction is allowed to finish even if
	// the run is being cancelled; a torn-down partial batch is worse than a
	// short shutdown delay.
	writeCtx := context.WithoutCancel(ctx)
	total := 0
	for start := 0; start < len(records); start += r.p.MaxBatch {
		end := min(start+r.p.MaxBatch, len(records))
		chunk := records[start:end]
		inserted, err := r.p.Writer.Write(writeCtx, src.ID, chunk)
		if err != nil {
			return total, err
		}
		total += inserted
		r.p.Guard.MarkInserted(writeCtx, chunk)
	}
	return total, nil
}

// finishRun persists and publishes outcomes, then emits the final summary
// record.
func (r *Runner) finishRun(report *model.RunReport, outcomes []model.UnitOutcome, log *slog.Logger) {
	// Flush against a fresh context: the run context may already be
	// cancelled, but the flush itself must still be bounded.
	err := resilience.WithTimeout(context.Background(), 10*time.Second, "run flush", func(ctx context.Context) error {
		if r.p.Outcomes != nil && len(outcomes) > 0 {
			if err := r.p.Outcomes.InsertBatch(ctx, outcomes); err != nil {
				log.Warn("persisting unit outcomes failed", "error", err)
			}
		}
		if r.p.Publisher != nil {
			if err := r.p.Publisher.PublishOutcomes(ctx, outcomes); err != nil {
				log.Warn("publishing unit outcomes failed", "error", err)
			}
			if err := r.p.Publisher.PublishReport(ctx, report); err != nil {
				log.Warn("publishing run report failed", "error", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("run flush timed out", "error", err)
	}

	attempted, succeeded, failed, inserted := report.Totals()
	log.Info("ingestion run finished",
		"success", report.Success,
		"sources", len(report.Sources),
		"units_attempted", attempted,
		"units_succeeded", succeeded,
		"units_failed", failed,
		"records_inserted", inserted,
		"duration_ms", report.Duration().Milliseconds(),
	)
}

