package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
)

// OutcomeStore persists failed-unit outcomes for observability. Writing
// outcomes is best-effort; a failure here never fails the run.
type OutcomeStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewOutcomeStore creates an OutcomeStore.
func NewOutcomeStore(db *postgres.Client) *OutcomeStore {
	return &OutcomeStore{
		db:     db,
		logger: slog.Default().With("component", "outcome-store"),
	}
}

// InsertBatch writes the run's unit outcomes.
func (s *OutcomeStore) InsertBatch(ctx context.Context, outcomes []model.UnitOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		_, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO unit_outcomes (source_id, unit, class, message, occurred_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			o.SourceID, o.Unit, string(o.Class), o.Message, o.OccurredAt,
		)
		if err != nil {
			return fmt.Errorf("inserting unit outcome %s/%d: %w", o.SourceID, o.Unit, err)
		}
	}
	return nil
}
