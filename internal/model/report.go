package model

import (
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

// SourceState is the per-source ingestion state machine. Failed is reached
// only when no starting unit could be computed; unit-level failures leave the
// source on course for Completed.
type SourceState string

const (
	StatePending   SourceState = "pending"
	StateRunning   SourceState = "running"
	StateCompleted SourceState = "completed"
	StateFailed    SourceState = "failed"
)

// UnitOutcome records one failed unit within a run.
type UnitOutcome struct {
	SourceID   string          `json:"source_id"`
	Unit       int             `json:"unit"`
	Class      apperrors.Class `json:"class"`
	Message    string          `json:"message"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// SourceReport is the per-source section of a run report.
type SourceReport struct {
	SourceID        string        `json:"source_id"`
	State           SourceState   `json:"state"`
	PlannedStart    int           `json:"planned_start"`
	PlannedEnd      int           `json:"planned_end"`
	DegradedPlan    bool          `json:"degraded_plan"`
	UnitsAttempted  int           `json:"units_attempted"`
	UnitsSucceeded  int           `json:"units_succeeded"`
	UnitsFailed     int           `json:"units_failed"`
	RecordsInserted int           `json:"records_inserted"`
	Outcomes        []UnitOutcome `json:"outcomes,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// RunReport is the result of one full ingestion run across all sources.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
	Success    bool           `json:"success"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals sums unit and record counters across all sources.
func (r *RunReport) Totals() (attempted, succeeded, failed, inserted int) {
	for _, src := range r.Sources {
		attempted += src.UnitsAttempted
		succeeded += src.UnitsSucceeded
		failed += src.UnitsFailed
		inserted += src.RecordsInserted
	}
	return attempted, succeeded, failed, inserted
}
