// Command ingest runs one finite ingestion pass over every configured
// imaging source and exits. It is designed for cron/orchestrator
// invocation: exit code 0 when every source completes (unit-level failures
// included), non-zero otherwise, with a machine-parseable summary log line.
//
// Usage:
//
//	go run ./cmd/ingest [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/report"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Sources) == 0 {
		fmt.Fprintln(os.Stderr, "no sources configured")
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingest", "sources", len(cfg.Sources))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) error {
		return db.DB.PingContext(ctx)
	})

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/livez", checker.LiveHandler())
		mux.HandleFunc("/readyz", checker.ReadyHandler())
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("admin server error", "error", err)
			}
		}()
	}

	sources := store.NewSourceStore(db)
	seed := make([]model.Source, len(cfg.Sources))
	for i, src := range cfg.Sources {
		seed[i] = model.Source{ID: src.ID, Name: src.Name, Status: "active", Active: true}
	}
	if err := sources.Ensure(ctx, seed); err != nil {
		slog.Error("seeding sources failed", "error", err)
		os.Exit(1)
	}
	active, err := sources.ListActive(ctx)
	if err != nil {
		slog.Error("listing active sources failed", "error", err)
		os.Exit(1)
	}
	activeIDs := make(map[string]bool, len(active))
	for _, src := range active {
		activeIDs[src.ID] = true
	}
	var runSources []config.SourceConfig
	for _, src := range cfg.Sources {
		if activeIDs[src.ID] {
			runSources = append(runSources, src)
		} else {
			slog.Info("skipping deactivated source", "source", src.ID)
		}
	}

	records := store.NewRecordStore(db)
	categories := store.NewCategoryStore(db)
	watermarks := store.NewWatermarkStore(db)

	var seenCache *redis.Client
	if cfg.Redis.Enabled {
		seenCache, err = redis.NewClient(cfg.Redis)
		if err != nil {
			// The cache only saves store round-trips; run without it.
			slog.Warn("redis unavailable, guard will use postgres only", "error", err)
			seenCache = nil
		} else {
			defer seenCache.Close()
			checker.Register("redis", seenCache.Ping)
		}
	}
	// A nil *redis.Client must not end up inside a non-nil interface.
	var guard *ingest.Guard
	if seenCache != nil {
		guard = ingest.NewGuard(records, seenCache, m)
	} else {
		guard = ingest.NewGuard(records, nil, m)
	}

	var publisher *report.Publisher
	if cfg.Kafka.Enabled {
		publisher = report.NewPublisher(kafka.NewProducer(cfg.Kafka, cfg.Kafka.OutcomesTopic))
		defer publisher.Close()
	}

	var outcomes *store.OutcomeStore
	if cfg.Ingest.PersistOutcomes {
		outcomes = store.NewOutcomeStore(db)
	}

	params := ingest.RunnerParams{
		Sources:    runSources,
		MaxBatch:   cfg.Ingest.MaxBatchSize,
		Registry:   extract.NewRegistry(),
		Guard:      guard,
		Resolver:   ingest.NewResolver(categories),
		Writer:     ingest.NewWriter(records, m),
		Scheduler:  ingest.NewScheduler(watermarks, records, cfg.Ingest.Lookback),
		Watermarks: watermarks,
		Metrics:    m,
	}
	if outcomes != nil {
		params.Outcomes = outcomes
	}
	if publisher != nil {
		params.Publisher = publisher
	}

	runner := ingest.NewRunner(params)
	runReport, err := runner.RunIngestion(ctx)
	if err != nil {
		slog.Error("ingestion run aborted", "error", err)
		os.Exit(1)
	}
	for _, src := range runSources {
		if n, err := records.CountBySource(context.WithoutCancel(ctx), src.ID); err == nil {
			slog.Info("stored records", "source", src.ID, "count", n)
		}
	}
	if !runReport.Success {
		os.Exit(1)
	}
}
