// Package metrics defines the Prometheus metric collectors used by the
// ingestion pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the ingestion pipeline.
type Metrics struct {
	FetchAttemptsTotal    *prometheus.CounterVec
	FetchRetriesTotal     *prometheus.CounterVec
	FetchDuration         *prometheus.HistogramVec
	CircuitBreakerState   *prometheus.GaugeVec
	RecordsExtractedTotal *prometheus.CounterVec
	RecordsFilteredTotal  *prometheus.CounterVec
	RecordsInsertedTotal  *prometheus.CounterVec
	UnitOutcomesTotal     *prometheus.CounterVec
	WatermarkUnit         *prometheus.GaugeVec
	RunDuration           prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		FetchAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_fetch_attempts_total",
				Help: "Total provider fetch attempts by source and result.",
			},
			[]string{"source", "result"},
		),
		FetchRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_fetch_retries_total",
				Help: "Total fetch retries by source.",
			},
			[]string{"source"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_fetch_duration_seconds",
				Help:    "Provider fetch latency in seconds, per source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ingest_circuit_breaker_state",
				Help: "Circuit breaker state per source (0=closed, 1=open, 2=half-open).",
			},
			[]string{"source"},
		),
		RecordsExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_records_extracted_total",
				Help: "Candidate records produced by extraction, per source.",
			},
			[]string{"source"},
		),
		RecordsFilteredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_records_filtered_total",
				Help: "Candidate records discarded as already stored, per source.",
			},
			[]string{"source"},
		),
		RecordsInsertedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_records_inserted_total",
				Help: "Records durably inserted, per source.",
			},
			[]string{"source"},
		),
		UnitOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_unit_outcomes_total",
				Help: "Unit outcomes by source and failure class (class=ok for success).",
			},
			[]string{"source", "class"},
		),
		WatermarkUnit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ingest_watermark_unit",
				Help: "Last fully synced unit per source.",
			},
			[]string{"source"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_run_duration_seconds",
				Help:    "Wall-clock duration of a full ingestion run.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
			},
		),
	}

	prometheus.MustRegister(
		m.FetchAttemptsTotal,
		m.FetchRetriesTotal,
		m.FetchDuration,
		m.CircuitBreakerState,
		m.RecordsExtractedTotal,
		m.RecordsFilteredTotal,
		m.RecordsInsertedTotal,
		m.UnitOutcomesTotal,
		m.WatermarkUnit,
		m.RunDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
