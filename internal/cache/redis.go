package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/medexperts/internal/metrics"
)

const expertKeyTpl = "expert:%s:%s" // expert:${source}:${aphra_number}

// ExpertCache keeps merged expert lookups in Redis for a fixed TTL.
// A nil *ExpertCache is valid and caches nothing.
type ExpertCache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func New(redisURL string, ttl time.Duration) (*ExpertCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

func NewWithClient(client redis.Cmdable, ttl time.Duration) *ExpertCache {
	return &ExpertCache{redis: client, ttl: ttl}
}

// Get decodes the cached value into dst and reports whether there was one.
// Redis failures count as a miss.
func (c *ExpertCache) Get(ctx context.Context, source, aphraNumber string, dst any) bool {
	if c == nil {
		return false
	}

	key := fmt.Sprintf(expertKeyTpl, source, aphraNumber)
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ExpertCacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if err != nil {
		metrics.ExpertCacheLookups.WithLabelValues("error").Inc()
		logger.Error.Printf("Redis GET %s failed: %v", key, err)
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		metrics.ExpertCacheLookups.WithLabelValues("error").Inc()
		logger.Error.Printf("Failed to decode cached %s: %v", key, err)
		return false
	}

	metrics.ExpertCacheLookups.WithLabelValues("hit").Inc()
	return true
}

func (c *ExpertCache) Set(ctx context.Context, source, aphraNumber string, v any) {
	if c == nil {
		return
	}

	key := fmt.Sprintf(expertKeyTpl, source, aphraNumber)
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error.Printf("Failed to encode %s for cache: %v", key, err)
		return
	}

	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Error.Printf("Redis SET %s failed: %v", key, err)
	}
}

func (c *ExpertCache) Close() error {
	if c == nil {
		return nil
	}
	if closer, ok := c.redis.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
