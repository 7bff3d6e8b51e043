// Package rediscache keeps the last successfully loaded catalog in Redis so a
// terminal can keep selling when the primary store is unreachable.
package rediscache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

const (
	productsKey   = "pos:catalog:products"
	promotionsKey = "pos:catalog:promotions"
)

// ErrCacheMiss is returned when nothing is cached under a key.
var ErrCacheMiss = errors.New("cache miss")

type store struct {
	client *redis.Client
	ttl    time.Duration
}

func (s store) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return data, nil
}

func (s store) set(ctx context.Context, key string, data []byte) {
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository reads through to next and falls back to the cached
// catalog when next fails.
type ProductRepository struct {
	next  product.Repository
	store store
}

// NewProductRepository wraps next with a Redis fallback.
func NewProductRepository(next product.Repository, client *redis.Client, ttl time.Duration) *ProductRepository {
	return &ProductRepository{next: next, store: store{client: client, ttl: ttl}}
}

func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	products, err := r.next.List(ctx)
	if err == nil {
		var e jx.Encoder
		catalogfile.EncodeProducts(&e, products)
		r.store.set(ctx, productsKey, e.Bytes())
		return products, nil
	}

	cached, cacheErr := r.cached(ctx)
	if cacheErr != nil {
		return nil, err
	}
	zctx.From(ctx).Warn("Serving cached catalog", zap.Error(err))
	return cached, nil
}

// GetByID asks next first. Only store failures fall back to the cache; a
// product missing from the store is reported as missing.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, err := r.next.GetByID(ctx, id)
	if err == nil || errors.Is(err, product.ErrNotFound) {
		return p, err
	}

	cached, cacheErr := r.cached(ctx)
	if cacheErr != nil {
		return nil, err
	}
	for _, c := range cached {
		if c.ID == id {
			zctx.From(ctx).Warn("Serving cached product", zap.String("product_id", id), zap.Error(err))
			return &c, nil
		}
	}
	return nil, err
}

func (r *ProductRepository) cached(ctx context.Context) ([]product.Product, error) {
	data, err := r.store.get(ctx, productsKey)
	if err != nil {
		return nil, err
	}
	products, err := catalogfile.DecodeProducts(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode cached products")
	}
	return products, nil
}

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository reads through to next and falls back to the cached
// promotion catalog when next fails.
type PromotionRepository struct {
	next  promotion.Repository
	store store
}

// NewPromotionRepository wraps next with a Redis fallback.
func NewPromotionRepository(next promotion.Repository, client *redis.Client, ttl time.Duration) *PromotionRepository {
	return &PromotionRepository{next: next, store: store{client: client, ttl: ttl}}
}

func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	promos, err := r.next.List(ctx)
	if err == nil {
		var e jx.Encoder
		catalogfile.EncodePromotions(&e, promos)
		r.store.set(ctx, promotionsKey, e.Bytes())
		return promos, nil
	}

	data, cacheErr := r.store.get(ctx, promotionsKey)
	if cacheErr != nil {
		return nil, err
	}
	cached, decodeErr := catalogfile.DecodePromotions(jx.DecodeBytes(data), time.Local)
	if decodeErr != nil {
		zctx.From(ctx).Warn("Cached promotions unreadable", zap.Error(decodeErr))
		return nil, err
	}
	zctx.From(ctx).Warn("Serving cached promotions", zap.Error(err))
	return cached, nil
}
