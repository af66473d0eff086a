// redis_cache.go - Redis-backed ResultCache for multi-instance deployments

package storage

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bosocmputer/receipt_vision_ocr/internal/receipt"
)

const redisKeyPrefix = "extraction:"

// RedisCache stores extraction results as JSON in Redis with the TTL
// applied server-side. Redis errors degrade to cache misses; the pipeline
// never fails because the cache is down.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	log.Printf("✅ Connected to Redis result cache at %s", addr)
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*receipt.ExtractionResult, bool) {
	data, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️  Redis cache read failed: %v", err)
		}
		return nil, false
	}

	var result receipt.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Printf("⚠️  Redis cache entry corrupt, dropping key %s: %v", key, err)
		c.rdb.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}

	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *receipt.ExtractionResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("⚠️  Redis cache marshal failed: %v", err)
		return
	}

	if err := c.rdb.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		// Cache write failure must not affect the request
		log.Printf("⚠️  Redis cache write failed: %v", err)
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
