// Package tiered layers an in-process cache over a shared one so replayed
// responses are visible to every replica.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/ClaimDesk/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache reads L1 then L2 and writes both. L2 failures are logged and
// degrade to L1-only behaviour; L1 failures are returned.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	backfill time.Duration
}

// New creates a tiered cache. backfill is the L1 lifetime of values
// copied up from L2.
func New(l1, l2 cache.Cache, backfill time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, backfill: backfill}
}

// Get checks L1, then L2, copying L2 hits into L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "tiered cache: l2 get failed", "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	if err := c.l1.Set(ctx, key, val, c.backfill); err != nil {
		slog.WarnContext(ctx, "tiered cache: l1 backfill failed", "error", err)
	}
	return val, true, nil
}

// Set writes to L1 and then L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		slog.WarnContext(ctx, "tiered cache: l2 set failed", "error", err)
	}
	return nil
}

// Delete removes from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "tiered cache: l2 delete failed", "error", err)
	}
	return nil
}
