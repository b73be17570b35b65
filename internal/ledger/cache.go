package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"psicoflow/internal/models"
)

// Cache holds computed ledgers in Redis so repeated month views don't reload
// and re-reconcile unchanged data. Optional: a nil *Cache disables caching.
// A hit bypasses the loader and with it the auto-completion side effect, so
// the TTL bounds how stale a persisted appointment status can be.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *Cache) key(ownerID string, start time.Time) string {
	return fmt.Sprintf("ledger:%s:%s", ownerID, start.Format("2006-01-02"))
}

// Get returns the cached ledger for the window, or nil on miss. Cache errors
// are logged and treated as misses.
func (c *Cache) Get(ctx context.Context, ownerID string, start time.Time) *models.Ledger {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := c.rdb.Get(ctx, c.key(ownerID, start)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("ledger cache read failed")
		}
		return nil
	}
	var l models.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		c.logger.Warn().Err(err).Msg("ledger cache entry corrupt, dropping")
		_ = c.rdb.Del(ctx, c.key(ownerID, start)).Err()
		return nil
	}
	return &l
}

// Put stores a computed ledger with the configured TTL.
func (c *Cache) Put(ctx context.Context, ownerID string, start time.Time, l *models.Ledger) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(l)
	if err != nil {
		c.logger.Warn().Err(err).Msg("ledger cache marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, c.key(ownerID, start), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("ledger cache write failed")
	}
}

// Invalidate drops every cached ledger for the owner. Called after any
// mutation that can change a month view.
func (c *Cache) Invalidate(ctx context.Context, ownerID string) {
	if c == nil || c.rdb == nil {
		return
	}
	pattern := fmt.Sprintf("ledger:%s:*", ownerID)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", iter.Val()).Msg("ledger cache invalidate failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("ledger cache scan failed")
	}
}
