package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
)

type fakeKeyChecker struct {
	existing map[string]struct{}
	queries  [][]string
	err      error
}

func (f *fakeKeyChecker) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	f.queries = append(f.queries, keys)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]struct{})
	for _, k := range keys {
		if _, ok := f.existing[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

type fakeSeenCache struct {
	seen    map[string]bool
	marked  []string
	lookErr error
}

func (f *fakeSeenCache) SeenKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = f.seen[k]
	}
	return out, nil
}

func (f *fakeSeenCache) MarkSeen(ctx context.Context, keys []string) error {
	f.marked = append(f.marked, keys...)
	return nil
}

func candidates(keys ...string) []model.CandidateRecord {
	out := make([]model.CandidateRecord, len(keys))
	for i, k := range keys {
		out[i] = model.CandidateRecord{NaturalKey: k, Unit: 100}
	}
	return out
}

func TestGuardPassesNewRecords(t *testing.T) {
	store := &fakeKeyChecker{existing: map[string]struct{}{}}
	guard := NewGuard(store, nil, nil)

	fresh, err := guard.Filter(context.Background(), "rover", candidates("a", "b", "c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 3 {
		t.Errorf("expected 3 fresh records, got %d", len(fresh))
	}
	if len(store.queries) != 1 {
		t.Errorf("existence must be checked in one batched query, got %d", len(store.queries))
	}
}

func TestGuardFiltersExisting(t *testing.T) {
	store := &fakeKeyChecker{existing: map[string]struct{}{"a": {}, "c": {}}}
	guard := NewGuard(store, nil, nil)

	fresh, err := guard.Filter(context.Background(), "rover", candidates("a", "b", "c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 1 || fresh[0].NaturalKey != "b" {
		t.Errorf("expected only b, got %+v", fresh)
	}
}

func TestGuardCollapsesInBatchDuplicates(t *testing.T) {
	store := &fakeKeyChecker{existing: map[string]struct{}{}}
	guard := NewGuard(store, nil, nil)

	fresh, err := guard.Filter(context.Background(), "rover", candidates("a", "a", "b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 2 {
		t.Errorf("expected in-batch duplicate collapsed, got %d records", len(fresh))
	}
}

func TestGuardEmptyBatch(t *testing.T) {
	store := &fakeKeyChecker{}
	guard := NewGuard(store, nil, nil)
	fresh, err := guard.Filter(context.Background(), "rover", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("expected empty result, got %d", len(fresh))
	}
	if len(store.queries) != 0 {
		t.Error("empty batch must not hit the store")
	}
}

func TestGuardUsesSeenCache(t *testing.T) {
	store := &fakeKeyChecker{existing: map[string]struct{}{}}
	cache := &fakeSeenCache{seen: map[string]bool{"a": true}}
	guard := NewGuard(store, cache, nil)

	fresh, err := guard.Filter(context.Background(), "rover", candidates("a", "b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 1 || fresh[0].NaturalKey != "b" {
		t.Errorf("expected cache to drop a, got %+v", fresh)
	}
	// Only the cache miss reaches the store.
	if len(store.queries) != 1 || len(store.queries[0]) != 1 {
		t.Errorf("expected single-key store query, got %+v", store.queries)
	}
}

func TestGuardCacheFailureFallsBackToStore(t *testing.T) {
	store := &fakeKeyChecker{existing: map[string]struct{}{"a": {}}}
	cache := &fakeSeenCache{lookErr: errors.New("redis down")}
	guard := NewGuard(store, cache, nil)

	fresh, err := guard.Filter(context.Background(), "rover", candidates("a", "b"))
	if err != nil {
		t.Fatalf("cache failure must not fail the filter: %v", err)
	}
	if len(fresh) != 1 || fresh[0].NaturalKey != "b" {
		t.Errorf("expected store-only filtering, got %+v", fresh)
	}
}

func TestGuardStoreErrorPropagates(t *testing.T) {
	store := &fakeKeyChecker{err: errors.New("db down")}
	guard := NewGuard(store, nil, nil)
	if _, err := guard.Filter(context.Background(), "rover", candidates("a")); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestGuardMarkInserted(t *testing.T) {
	cache := &fakeSeenCache{seen: map[string]bool{}}
	guard := NewGuard(&fakeKeyChecker{}, cache, nil)
	guard.MarkInserted(context.Background(), []model.Record{
		{NaturalKey: "a"}, {NaturalKey: "b"},
	})
	if len(cache.marked) != 2 {
		t.Errorf("expected 2 keys marked, got %v", cache.marked)
	}
}
