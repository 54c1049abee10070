package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketday/tracker/pkg/logger"
)

// Cache provides typed caching utilities
type Cache struct {
	client *Client
	prefix string
	logger *logger.Logger
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		logger: log,
	}
}

// Get retrieves a cached value. A missing key is a miss, not an error;
// any other Redis failure is returned to the caller.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.setBytes(ctx, key, data, ttl)
}

func (c *Cache) setBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// GetOrSet retrieves from cache or calls fn to populate it. Redis
// failures on either side are logged and degrade to a plain load: the
// loader's value always reaches dest.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	// Try cache first
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed, falling back to loader")
	}
	if found {
		return nil
	}

	// Cache miss - call function
	value, err := fn()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	if err := c.setBytes(ctx, key, data, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}

	// Unmarshal into dest
	return json.Unmarshal(data, dest)
}

// Predefined TTLs
const (
	TTLMedium = 10 * time.Minute   // daily summaries
	TTLWeekly = 7 * 24 * time.Hour // index constituent lists
)

// Common cache key generators
func ConstituentsKey(indexSlug string) string {
	return fmt.Sprintf("index:constituents:%s", indexSlug)
}

func SummaryKey(date string) string {
	return fmt.Sprintf("summary:daily:%s", date)
}
