// Package catalogcache is a Redis read-through cache in front of a
// catalog.Repository.
package catalogcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
)

var _ catalog.Repository = (*Repository)(nil)

// Repository caches products and stores as JSON. Misses and lookup errors
// are never cached, and Redis failures fall through to the backing
// repository.
type Repository struct {
	next   catalog.Repository
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New wraps next with a cache. A nil client disables caching.
func New(next catalog.Repository, client *redis.Client, ttl time.Duration) *Repository {
	return &Repository{next: next, client: client, ttl: ttl, prefix: "pricing:catalog:"}
}

// GetProduct returns the cached product or loads it from the backing
// repository.
func (r *Repository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return readThrough(ctx, r, "product:"+id, func() (*catalog.Product, error) {
		return r.next.GetProduct(ctx, id)
	})
}

// GetStoreBySlug returns the cached store or loads it.
func (r *Repository) GetStoreBySlug(ctx context.Context, slug string) (*catalog.Store, error) {
	return readThrough(ctx, r, "store:slug:"+slug, func() (*catalog.Store, error) {
		return r.next.GetStoreBySlug(ctx, slug)
	})
}

// GetStoreForProduct returns the cached owner store or loads it.
func (r *Repository) GetStoreForProduct(ctx context.Context, productID string) (*catalog.Store, error) {
	return readThrough(ctx, r, "store:product:"+productID, func() (*catalog.Store, error) {
		return r.next.GetStoreForProduct(ctx, productID)
	})
}

// Invalidate drops cached entries for a product and its owner lookup.
func (r *Repository) Invalidate(ctx context.Context, productID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.prefix+"product:"+productID, r.prefix+"store:product:"+productID).Err(); err != nil {
		return errors.Wrap(err, "invalidate product")
	}
	return nil
}

func readThrough[T any](ctx context.Context, r *Repository, key string, load func() (*T, error)) (*T, error) {
	if r.client == nil || r.ttl <= 0 {
		return load()
	}
	key = r.prefix + key
	lg := zctx.From(ctx)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		v := new(T)
		if err := json.Unmarshal(data, v); err == nil {
			return v, nil
		}
		lg.Warn("Dropping undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(v); err != nil {
		lg.Warn("Catalog cache encode failed", zap.String("key", key), zap.Error(err))
	} else if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		lg.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
