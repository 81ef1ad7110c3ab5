package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"boardapp/models"
)

// AdCache holds serialized advertisement read-models under ad:{id}.
// Entries are populated cache-aside on the read path; a hit bypasses the
// relational store entirely, soft-delete filter included.
type AdCache interface {
	// Get returns the cached payload or models.ErrNotFound on a miss.
	Get(ctx context.Context, adID uint) ([]byte, error)
	Set(ctx context.Context, adID uint, payload []byte, ttl time.Duration) error
}

func adCacheKey(adID uint) string {
	return fmt.Sprintf("ad:%d", adID)
}

type RedisAdCache struct {
	rdb *redis.Client
}

func NewRedisAdCache(rdb *redis.Client) *RedisAdCache {
	return &RedisAdCache{rdb: rdb}
}

func (c *RedisAdCache) Get(ctx context.Context, adID uint) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, adCacheKey(adID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ad cache get: %w", err)
	}
	return payload, nil
}

func (c *RedisAdCache) Set(ctx context.Context, adID uint, payload []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, adCacheKey(adID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("ad cache set: %w", err)
	}
	return nil
}

// MemoryAdCache is the in-process AdCache used by tests.
type MemoryAdCache struct {
	mu      sync.Mutex
	entries map[uint]memoryAdEntry
	now     func() time.Time
}

type memoryAdEntry struct {
	payload []byte
	expires time.Time
}

func NewMemoryAdCache() *MemoryAdCache {
	return &MemoryAdCache{entries: make(map[uint]memoryAdEntry), now: time.Now}
}

func (c *MemoryAdCache) WithClock(now func() time.Time) *MemoryAdCache {
	c.now = now
	return c
}

func (c *MemoryAdCache) Get(_ context.Context, adID uint) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[adID]
	if !ok || c.now().After(ent.expires) {
		delete(c.entries, adID)
		return nil, models.ErrNotFound
	}
	return ent.payload, nil
}

func (c *MemoryAdCache) Set(_ context.Context, adID uint, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[adID] = memoryAdEntry{payload: payload, expires: c.now().Add(ttl)}
	return nil
}

// Evict drops an entry. Test hook.
func (c *MemoryAdCache) Evict(adID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, adID)
}
