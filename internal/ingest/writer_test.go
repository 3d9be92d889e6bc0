package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
)

type fakeInserter struct {
	inserted int
	err      error
	calls    int
}

func (f *fakeInserter) InsertBatch(ctx context.Context, records []model.Record) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.inserted, nil
}

func records(keys ...string) []model.Record {
	out := make([]model.Record, len(keys))
	for i, k := range keys {
		out[i] = model.Record{NaturalKey: k, Unit: 100}
	}
	return out
}

func TestWriterInsertsBatch(t *testing.T) {
	store := &fakeInserter{inserted: 3}
	w := NewWriter(store, nil)
	n, err := w.Write(context.Background(), "rover", records("a", "b", "c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 inserted, got %d", n)
	}
}

func TestWriterEmptyBatch(t *testing.T) {
	store := &fakeInserter{}
	w := NewWriter(store, nil)
	n, err := w.Write(context.Background(), "rover", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted, got %d", n)
	}
	if store.calls != 0 {
		t.Error("empty batch must not hit the store")
	}
}

func TestWriterUniqueViolationIsBenign(t *testing.T) {
	// A concurrent run won the idempotency race after our guard check. The
	// batch yields zero inserts, not an error.
	store := &fakeInserter{err: &pq.Error{Code: "23505"}}
	w := NewWriter(store, nil)
	n, err := w.Write(context.Background(), "rover", records("a"))
	if err != nil {
		t.Fatalf("unique violation must not fail the unit: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted, got %d", n)
	}
}

func TestWriterWrappedUniqueViolation(t *testing.T) {
	store := &fakeInserter{
		err: fmt.Errorf("inserting record batch: %w", &pq.Error{Code: "23505"}),
	}
	w := NewWriter(store, nil)
	n, err := w.Write(context.Background(), "rover", records("a", "b"))
	if err != nil {
		t.Fatalf("wrapped unique violation must not fail the unit: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted, got %d", n)
	}
}

func TestWriterOtherErrorsPropagate(t *testing.T) {
	store := &fakeInserter{err: errors.New("db down")}
	w := NewWriter(store, nil)
	if _, err := w.Write(context.Background(), "rover", records("a")); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
