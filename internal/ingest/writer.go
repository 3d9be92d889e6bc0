package ingest

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/postgres"
)

// recordInserter is the slice of the record store the writer needs.
type recordInserter interface {
	InsertBatch(ctx context.Context, records []model.Record) (int, error)
}

// Writer commits validated record batches. Each call is one atomic
// transaction; chunking oversized batches is the caller's concern.
type Writer struct {
	records recordInserter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Writer. m may be nil.
func NewWriter(records recordInserter, m *metrics.Metrics) *Writer {
	return &Writer{
		records: records,
		metrics: m,
		logger:  slog.Default().With("component", "batch-writer"),
	}
}

// Write inserts records all-or-nothing and returns the inserted count.
// A unique-key violation means a concurrent run won the idempotency race
// after our guard check; that is informational, not a failure, and the
// batch result stands at zero rather than erroring out.
func (w *Writer) Write(ctx context.Context, sourceID string, records []model.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	inserted, err := w.records.InsertBatch(ctx, records)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			w.logger.Info("batch lost idempotency race, skipping",
				"source", sourceID,
				"batch", len(records),
			)
			return 0, nil
		}
		return 0, err
	}
	if w.metrics != nil && inserted > 0 {
		w.metrics.RecordsInsertedTotal.WithLabelValues(sourceID).Add(float64(inserted))
	}
	return inserted, nil
}
