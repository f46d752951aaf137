// Package cache adapts pkg/cache to the extraction cache ports.
package cache

import (
	"context"
	"time"

	"order_worker/core/domain"
	"order_worker/core/port/out"
	"order_worker/pkg/apperr"
	"order_worker/pkg/cache"

	"github.com/goccy/go-json"
)

const (
	extractionPrefix  = "extract:semantic:"
	batchResultPrefix = "extract:result:"
)

// ExtractionCache keeps semantic extraction results in an optional
// in-memory L1 in front of Redis. Either tier may be nil.
type ExtractionCache struct {
	store *cache.RedisCache
	l1    *cache.L1Cache
}

var _ out.ExtractionCache = (*ExtractionCache)(nil)

func NewExtractionCache(store *cache.RedisCache, l1 *cache.L1Cache) *ExtractionCache {
	return &ExtractionCache{store: store, l1: l1}
}

func (c *ExtractionCache) GetProducts(ctx context.Context, key string) ([]domain.ExtractedProduct, bool, error) {
	var products []domain.ExtractedProduct
	if c.l1 != nil {
		if data, ok := c.l1.Get(key); ok {
			if err := json.Unmarshal(data, &products); err == nil {
				return products, true, nil
			}
			c.l1.Delete(key)
		}
	}
	if c.store == nil {
		return nil, false, nil
	}

	ok, err := c.store.GetJSON(ctx, extractionPrefix+key, &products)
	if err != nil || !ok {
		return nil, false, err
	}
	if c.l1 != nil {
		// L2 히트를 L1에 채움
		if data, err := json.Marshal(products); err == nil {
			c.l1.Set(key, data, 0)
		}
	}
	return products, true, nil
}

func (c *ExtractionCache) SetProducts(ctx context.Context, key string, products []domain.ExtractedProduct, ttl time.Duration) error {
	if c.l1 != nil {
		data, err := json.Marshal(products)
		if err != nil {
			return err
		}
		c.l1.Set(key, data, ttl)
	}
	if c.store == nil {
		return nil
	}
	return c.store.SetJSON(ctx, extractionPrefix+key, products, ttl)
}

// BatchResultStore keeps finished batch summaries for polling.
type BatchResultStore struct {
	store *cache.RedisCache
}

var _ out.BatchResultStore = (*BatchResultStore)(nil)

func NewBatchResultStore(store *cache.RedisCache) *BatchResultStore {
	return &BatchResultStore{store: store}
}

// ResultKey is the Redis key a batch summary is stored under.
func ResultKey(batchID string) string {
	return batchResultPrefix + batchID
}

func (s *BatchResultStore) SaveResult(ctx context.Context, result *domain.BatchResult, ttl time.Duration) error {
	return s.store.SetJSON(ctx, ResultKey(result.ID.String()), result, ttl)
}

func (s *BatchResultStore) GetResult(ctx context.Context, batchID string) (*domain.BatchResult, error) {
	var result domain.BatchResult
	ok, err := s.store.GetJSON(ctx, ResultKey(batchID), &result)
	if err != nil {
		return nil, apperr.ExternalError("redis", err)
	}
	if !ok {
		return nil, apperr.NotFound("batch result")
	}
	return &result, nil
}
