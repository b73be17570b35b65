package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psicoflow/internal/models"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zerolog.Nop()
	return NewCache(rdb, time.Minute, &logger), mr
}

func sampleLedger() *models.Ledger {
	return &models.Ledger{
		Transactions: []models.Transaction{
			{ID: "a1", Value: decimal.RequireFromString("150"), Status: models.StatusCompleted},
		},
		Estimated: decimal.RequireFromString("150"),
		Received:  decimal.RequireFromString("150"),
		Pending:   decimal.Zero,
		Average:   decimal.RequireFromString("150"),
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)

	assert.Nil(t, cache.Get(ctx, "owner", start))

	cache.Put(ctx, "owner", start, sampleLedger())

	got := cache.Get(ctx, "owner", start)
	require.NotNil(t, got)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "a1", got.Transactions[0].ID)
	assert.True(t, got.Estimated.Equal(decimal.RequireFromString("150")))
}

func TestCacheScopedByOwnerAndMonth(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	july := june.AddDate(0, 1, 0)

	cache.Put(ctx, "owner-a", june, sampleLedger())

	assert.Nil(t, cache.Get(ctx, "owner-b", june))
	assert.Nil(t, cache.Get(ctx, "owner-a", july))
	assert.NotNil(t, cache.Get(ctx, "owner-a", june))
}

func TestCacheInvalidateDropsAllOwnerMonths(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	july := june.AddDate(0, 1, 0)

	cache.Put(ctx, "owner-a", june, sampleLedger())
	cache.Put(ctx, "owner-a", july, sampleLedger())
	cache.Put(ctx, "owner-b", june, sampleLedger())

	cache.Invalidate(ctx, "owner-a")

	assert.Nil(t, cache.Get(ctx, "owner-a", june))
	assert.Nil(t, cache.Get(ctx, "owner-a", july))
	assert.NotNil(t, cache.Get(ctx, "owner-b", june))
}

func TestCacheCorruptEntryIsAMiss(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)

	require.NoError(t, mr.Set("ledger:owner:2025-06-01", "{not json"))
	assert.Nil(t, cache.Get(ctx, "owner", start))
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)

	assert.Nil(t, cache.Get(ctx, "owner", start))
	cache.Put(ctx, "owner", start, sampleLedger())
	cache.Invalidate(ctx, "owner")
}
