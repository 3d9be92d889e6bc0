package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
)

// SourceStore persists imaging sources (rovers).
type SourceStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewSourceStore creates a SourceStore.
func NewSourceStore(db *postgres.Client) *SourceStore {
	return &SourceStore{
		db:     db,
		logger: slog.Default().With("component", "source-store"),
	}
}

// Ensure upserts the configured sources so reference rows exist before the
// first run. Display name and status follow the config; the activity flag
// is only ever cleared by an operator, so it is not overwritten here.
func (s *SourceStore) Ensure(ctx context.Context, sources []model.Source) error {
	for _, src := range sources {
		_, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO sources (id, name, status, active)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status`,
			src.ID, src.Name, src.Status, src.Active,
		)
		if err != nil {
			return fmt.Errorf("ensuring source %s: %w", src.ID, err)
		}
	}
	return nil
}

// ListActive returns sources whose activity flag is set.
func (s *SourceStore) ListActive(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, status, active FROM sources WHERE active`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing active sources: %w", err)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.Name, &src.Status, &src.Active); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
