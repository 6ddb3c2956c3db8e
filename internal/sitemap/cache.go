package sitemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKey = "sitemap:jobs"
	cacheTTL = time.Hour
)

// Cache keeps the last good jobs sitemap in Redis so every replica serves
// the same document without hitting the listing store.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache returns a Cache on rdb.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: cacheTTL}
}

// Get returns the cached document; ok is false on a miss.
func (c *Cache) Get(ctx context.Context) (doc Document, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("sitemap cache get: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, false, fmt.Errorf("sitemap cache decode: %w", err)
	}
	return doc, true, nil
}

// Put stores doc. Degraded documents are never cached.
func (c *Cache) Put(ctx context.Context, doc Document) error {
	if doc.Degraded() {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sitemap cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("sitemap cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached document.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, cacheKey).Err()
}
