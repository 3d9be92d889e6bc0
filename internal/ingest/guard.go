// Package ingest implements the ingestion pipeline core: unit scheduling,
// idempotency filtering, category resolution, batched writes, and run
// aggregation. The runner ties the stages together, one goroutine per
// source, sequential units within a source.
package ingest

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/metrics"
)

// recordKeyChecker is the slice of the record store the guard needs.
type recordKeyChecker interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// seenKeyCache is the optional Redis-backed cache of recently inserted
// natural keys. It only ever reduces load on the store; the store's
// uniqueness constraint remains the final authority.
type seenKeyCache interface {
	SeenKeys(ctx context.Context, keys []string) (map[string]bool, error)
	MarkSeen(ctx context.Context, keys []string) error
}

// Guard removes candidate records whose natural key is already stored.
// Existence is checked for the whole batch at once. Concurrent runs racing
// past the guard are resolved downstream by the records table's UNIQUE
// constraint, so no extra locking is needed here.
type Guard struct {
	records recordKeyChecker
	cache   seenKeyCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGuard creates a Guard. cache and m may be nil.
func NewGuard(records recordKeyChecker, cache seenKeyCache, m *metrics.Metrics) *Guard {
	return &Guard{
		records: records,
		cache:   cache,
		metrics: m,
		logger:  slog.Default().With("component", "idempotency-guard"),
	}
}

// Filter returns only the candidates that are genuinely new. Duplicates
// within the batch itself are also collapsed, keeping the first occurrence.
func (g *Guard) Filter(ctx context.Context, sourceID string, candidates []model.CandidateRecord) ([]model.CandidateRecord, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	unique := make([]model.CandidateRecord, 0, len(candidates))
	seenInBatch := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seenInBatch[c.NaturalKey]; dup {
			continue
		}
		seenInBatch[c.NaturalKey] = struct{}{}
		unique = append(unique, c)
	}

	unique = g.filterCached(ctx, unique)
	if len(unique) == 0 {
		g.countFiltered(sourceID, len(candidates))
		return nil, nil
	}

	keys := make([]string, len(unique))
	for i, c := range unique {
		keys[i] = c.NaturalKey
	}
	existing, err := g.records.ExistingKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	fresh := unique[:0]
	for _, c := range unique {
		if _, ok := existing[c.NaturalKey]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	g.countFiltered(sourceID, len(candidates)-len(fresh))
	return fresh, nil
}

// MarkInserted records freshly written keys in the cache, best-effort.
func (g *Guard) MarkInserted(ctx context.Context, records []model.Record) {
	if g.cache == nil || len(records) == 0 {
		return
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.NaturalKey
	}
	if err := g.cache.MarkSeen(ctx, keys); err != nil {
		g.logger.Warn("seen-key cache write failed", "error", err)
	}
}

// filterCached drops candidates the seen-key cache knows about. Cache
// failures degrade to the store-only path.
func (g *Guard) filterCached(ctx context.Context, candidates []model.CandidateRecord) []model.CandidateRecord {
	if g.cache == nil {
		return candidates
	}
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.NaturalKey
	}
	seen, err := g.cache.SeenKeys(ctx, keys)
	if err != nil {
		g.logger.Warn("seen-key cache lookup failed, falling back to store", "error", err)
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if !seen[c.NaturalKey] {
			kept = append(kept, c)
		}
	}
	return kept
}

func (g *Guard) countFiltered(sourceID string, n int) {
	if g.metrics != nil && n > 0 {
		g.metrics.RecordsFilteredTotal.WithLabelValues(sourceID).Add(float64(n))
	}
}
