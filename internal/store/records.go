// Package store implements the Postgres repositories behind the ingestion
// pipeline: records, categories, sources, watermarks, and unit outcomes.
//
// Schema (see migrations/001_init.sql):
//
//	sources(id, name, status, active)
//	categories(id, source_id, code, display_name) UNIQUE(source_id, code)
//	records(id, natural_key UNIQUE, unit, source_id, category_id,
//	        captured_at, site, drive, width, height, mast_az, mast_el,
//	        image_url, thumbnail_url, raw_payload)
//	watermarks(source_id PK, last_synced_unit, updated_at)
//	unit_outcomes(id, source_id, unit, class, message, occurred_at)
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
)

// recordColumns is the insert column list for records, natural_key first.
const recordColumns = "natural_key, unit, source_id, category_id, captured_at, " +
	"site, drive, width, height, mast_az, mast_el, image_url, thumbnail_url, raw_payload"

const recordFieldCount = 14

// RecordStore persists photo records.
type RecordStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewRecordStore creates a RecordStore.
func NewRecordStore(db *postgres.Client) *RecordStore {
	return &RecordStore{
		db:     db,
		logger: slog.Default().With("component", "record-store"),
	}
}

// ExistingKeys returns which of the given natural keys are already stored.
// The whole batch is resolved with a single indexed query, not one
// round-trip per key.
func (s *RecordStore) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT natural_key FROM records WHERE natural_key = ANY($1)`,
		pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("checking existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning existing key: %w", err)
		}
		existing[key] = struct{}{}
	}
	return existing, rows.Err()
}

// InsertBatch writes all records in one transaction with a single multi-row
// insert. Duplicate natural keys lost to a concurrent writer are skipped by
// the ON CONFLICT clause rather than failing the batch; the returned count
// is the number of rows actually inserted.
func (s *RecordStore) InsertBatch(ctx context.Context, records []model.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := insertRecordsQuery(len(records))
	args := make([]any, 0, len(records)*recordFieldCount)
	for _, r := range records {
		capturedAt := sql.NullTime{Time: r.CapturedAt, Valid: !r.CapturedAt.IsZero()}
		args = append(args,
			r.NaturalKey, r.Unit, r.SourceID, r.CategoryID, capturedAt,
			nullInt(r.Core.Site), nullInt(r.Core.Drive),
			nullInt(r.Core.Width), nullInt(r.Core.Height),
			nullFloat(r.Core.MastAz), nullFloat(r.Core.MastEl),
			r.Core.ImageURL, r.Core.ThumbnailURL, []byte(r.Raw),
		)
	}

	var inserted int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("inserting record batch: %w", err)
		}
		inserted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if int(inserted) < len(records) {
		s.logger.Info("duplicate keys skipped during insert",
			"batch", len(records),
			"inserted", inserted,
		)
	}
	return int(inserted), nil
}

// MaxUnit returns the highest stored unit for a source, with found=false
// when the source has no records yet.
func (s *RecordStore) MaxUnit(ctx context.Context, sourceID string) (int, bool, error) {
	var unit sql.NullInt64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT MAX(unit) FROM records WHERE source_id = $1`,
		sourceID,
	).Scan(&unit)
	if err != nil {
		return 0, false, fmt.Errorf("querying max unit for %s: %w", sourceID, err)
	}
	if !unit.Valid {
		return 0, false, nil
	}
	return int(unit.Int64), true, nil
}

// CountBySource returns the number of stored records for a source.
func (s *RecordStore) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE source_id = $1`,
		sourceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records for %s: %w", sourceID, err)
	}
	return count, nil
}

func insertRecordsQuery(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO records (" + recordColumns + ") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < recordFieldCount; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*recordFieldCount+j+1)
		}
		b.WriteString(")")
	}
	b.WriteString(" ON CONFLICT (natural_key) DO NOTHING")
	return b.String()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
