package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
)

// WatermarkStore persists the per-source last-synced unit.
type WatermarkStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewWatermarkStore creates a WatermarkStore.
func NewWatermarkStore(db *postgres.Client) *WatermarkStore {
	return &WatermarkStore{
		db:     db,
		logger: slog.Default().With("component", "watermark-store"),
	}
}

// Get returns a source's watermark, with found=false when the source has
// never completed a run.
func (s *WatermarkStore) Get(ctx context.Context, sourceID string) (int, bool, error) {
	var unit int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT last_synced_unit FROM watermarks WHERE source_id = $1`,
		sourceID,
	).Scan(&unit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("loading watermark for %s: %w", sourceID, err)
	}
	return unit, true, nil
}

// Set advances a source's watermark. Called only after the source completed
// its run; the watermark never moves backwards.
func (s *WatermarkStore) Set(ctx context.Context, sourceID string, unit int) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO watermarks (source_id, last_synced_unit, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (source_id) DO UPDATE
		 SET last_synced_unit = GREATEST(watermarks.last_synced_unit, EXCLUDED.last_synced_unit),
		     updated_at = EXCLUDED.updated_at`,
		sourceID, unit, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting watermark for %s: %w", sourceID, err)
	}
	s.logger.Info("watermark advanced", "source", sourceID, "unit", unit)
	return nil
}
