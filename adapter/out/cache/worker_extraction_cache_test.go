package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"order_worker/core/domain"
	"order_worker/pkg/apperr"
	"order_worker/pkg/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_REDIS_URL or skips.
func newTestStore(t *testing.T) *cache.RedisCache {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return cache.NewRedisCache(client, "test:"+uuid.NewString()+":")
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "extract:result:abc", ResultKey("abc"))
}

func TestExtractionCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewExtractionCache(newTestStore(t), nil)

	_, ok, err := c.GetProducts(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	products := []domain.ExtractedProduct{{Name: "Linen Shirt", Price: "₹1,299", Quantity: 1}}
	require.NoError(t, c.SetProducts(ctx, "k1", products, time.Minute))

	got, ok, err := c.GetProducts(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, products, got)
}

func TestBatchResultStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewBatchResultStore(newTestStore(t))

	_, err := s.GetResult(ctx, "missing")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	result := &domain.BatchResult{ID: uuid.New(), UserID: uuid.New(), TotalFound: 3, Accepted: 2}
	require.NoError(t, s.SaveResult(ctx, result, time.Minute))

	got, err := s.GetResult(ctx, result.ID.String())
	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)
	assert.Equal(t, 2, got.Accepted)
}

func TestExtractionCache_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := NewExtractionCache(nil, cache.NewL1Cache(cache.DefaultL1Config()))

	_, ok, err := c.GetProducts(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	products := []domain.ExtractedProduct{{Name: "Wool Coat", Brand: "Zara", Quantity: 1}}
	require.NoError(t, c.SetProducts(ctx, "k1", products, time.Hour))

	got, ok, err := c.GetProducts(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, products, got)
}

func TestExtractionCache_L2BackfillsL1(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, NewExtractionCache(store, nil).SetProducts(ctx, "k2",
		[]domain.ExtractedProduct{{Name: "Cargo Pants", Quantity: 2}}, time.Minute))

	l1 := cache.NewL1Cache(cache.DefaultL1Config())
	c := NewExtractionCache(store, l1)
	_, ok, err := c.GetProducts(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok)

	_, inL1 := l1.Get("k2")
	assert.True(t, inL1)
}
