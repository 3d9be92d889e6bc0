package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
)

// CategoryStore persists camera/instrument categories.
type CategoryStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewCategoryStore creates a CategoryStore.
func NewCategoryStore(db *postgres.Client) *CategoryStore {
	return &CategoryStore{
		db:     db,
		logger: slog.Default().With("component", "category-store"),
	}
}

// List returns every category across all sources, for warming the
// resolver's cache at the start of a run.
func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, source_id, code, display_name FROM categories`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Code, &c.DisplayName); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Create inserts a category, returning the stored row. When a concurrent
// writer created the same (source_id, code) first, the winner's row is
// returned instead of an error.
func (s *CategoryStore) Create(ctx context.Context, sourceID, code, displayName string) (model.Category, error) {
	c := model.Category{SourceID: sourceID, Code: code, DisplayName: displayName}
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO categories (source_id, code, display_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (source_id, code) DO NOTHING
		 RETURNING id`,
		sourceID, code, displayName,
	).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.get(ctx, sourceID, code)
	}
	if err != nil {
		return model.Category{}, fmt.Errorf("creating category %s/%s: %w", sourceID, code, err)
	}
	return c, nil
}

func (s *CategoryStore) get(ctx context.Context, sourceID, code string) (model.Category, error) {
	var c model.Category
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, source_id, code, display_name FROM categories
		 WHERE source_id = $1 AND code = $2`,
		sourceID, code,
	).Scan(&c.ID, &c.SourceID, &c.Code, &c.DisplayName)
	if err != nil {
		return model.Category{}, fmt.Errorf("loading category %s/%s: %w", sourceID, code, err)
	}
	return c, nil
}
