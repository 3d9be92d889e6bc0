package ingest

import (
	"context"
	"log/slog"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/internal/model"
)

// categoryStore is the slice of the category repository the resolver needs.
type categoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
	Create(ctx context.Context, sourceID, code, displayName string) (model.Category, error)
}

// unknownCategoryCode stands in when a provider item carries no instrument
// code at all.
const unknownCategoryCode = "UNK"

// Resolver maps (source, camera code) to a durable Category reference.
// The cache is warmed from the store once per run; a miss auto-creates the
// category with the code as a provisional display name. Missing seed data
// must never cost a record, so Resolve only fails on store errors.
type Resolver struct {
	store  categoryStore
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewResolver creates a Resolver with an empty cache.
func NewResolver(store categoryStore) *Resolver {
	return &Resolver{
		store:  store,
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: slog.Default().With("component", "category-resolver"),
	}
}

// Warm loads every known category into the cache. Called once at the start
// of a run, before any source pipeline starts.
func (r *Resolver) Warm(ctx context.Context) error {
	categories, err := r.store.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		r.cache.Set(cacheKey(c.SourceID, c.Code), c, gocache.NoExpiration)
	}
	r.logger.Info("category cache warmed", "categories", len(categories))
	return nil
}

// Resolve returns the category ID for a source and camera code, creating
// the category on first sight. An unseen code means either a genuinely new
// instrument or upstream data drift, so it is logged loudly.
func (r *Resolver) Resolve(ctx context.Context, sourceID, code string) (int64, error) {
	if code == "" {
		code = unknownCategoryCode
	}
	key := cacheKey(sourceID, code)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(model.Category).ID, nil
	}

	r.logger.Warn("unrecognized category code, auto-creating",
		"source", sourceID,
		"code", code,
	)
	category, err := r.store.Create(ctx, sourceID, code, code)
	if err != nil {
		return 0, err
	}
	r.cache.Set(key, category, gocache.NoExpiration)
	return category.ID, nil
}

func cacheKey(sourceID, code string) string {
	return sourceID + "/" + code
}
