// Package cache wraps an optional Redis client used to memoize report
// summaries. When no Redis address is configured every operation is a
// no-op, so callers never need to know whether caching is on.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gradebook-app/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect builds the cache. A missing REDIS_ADDR or a failed ping
// disables caching rather than stopping the application.
func Connect(cfg *config.Config) *Cache {
	c := &Cache{ttl: cfg.Redis.CacheTTL}
	if cfg.Redis.Addr == "" {
		log.Println("REDIS_ADDR not set, report caching disabled")
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Printf("Redis connection failed, caching disabled: %v", err)
		return c
	}

	log.Println("Redis connection successful")
	c.client = client
	return c
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get loads a cached value into dest. The bool reports a hit; errors are
// logged and treated as misses.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis GET failed for %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		log.Printf("Failed to unmarshal cached value for %s: %v", key, err)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("Failed to marshal value for caching %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("Redis SET failed for %s: %v", key, err)
	}
}

// Invalidate drops cached entries, typically after scores or norms
// change.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("Redis DEL failed: %v", err)
	}
}
