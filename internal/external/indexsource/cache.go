package indexsource

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marketday/tracker/pkg/logger"
	"github.com/marketday/tracker/pkg/redis"
)

// cacheMaxAge bounds how long a constituent list stays fresh. Index
// membership changes rarely, so a week is plenty.
const cacheMaxAge = 7 * 24 * time.Hour

// cachePayload is the on-disk cache format.
type cachePayload struct {
	Date    time.Time `json:"date"`
	Symbols []string  `json:"symbols"`
}

// FileCache stores constituent lists as JSON files under a directory.
type FileCache struct {
	dir    string
	maxAge time.Duration
	logger *logger.Logger
}

// NewFileCache creates a file-backed constituent cache.
func NewFileCache(dir string, log *logger.Logger) *FileCache {
	return &FileCache{dir: dir, maxAge: cacheMaxAge, logger: log}
}

// Load returns the cached list when the file exists and is fresh.
func (c *FileCache) Load(_ context.Context, indexName string) ([]string, bool) {
	data, err := os.ReadFile(c.path(indexName))
	if err != nil {
		return nil, false
	}

	var payload cachePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.WithError(err).WithField("index", indexName).Debug("Failed to decode constituent cache")
		return nil, false
	}
	if time.Since(payload.Date) >= c.maxAge {
		return nil, false
	}
	return payload.Symbols, true
}

// Save writes the list with the current timestamp. Failures are logged,
// never fatal.
func (c *FileCache) Save(_ context.Context, indexName string, symbols []string) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.WithError(err).Warn("Failed to create constituent cache directory")
		return
	}

	data, err := json.Marshal(cachePayload{Date: time.Now(), Symbols: symbols})
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode constituent cache")
		return
	}
	if err := os.WriteFile(c.path(indexName), data, 0o644); err != nil {
		c.logger.WithError(err).WithField("index", indexName).Warn("Failed to save constituent cache")
	}
}

var fileNameReplacer = strings.NewReplacer(" ", "_", "&", "", "-", "_")

func (c *FileCache) path(indexName string) string {
	return filepath.Join(c.dir, fileNameReplacer.Replace(indexName)+"_symbols.json")
}

// RedisCache stores constituent lists in Redis with a weekly TTL.
type RedisCache struct {
	cache  *redis.Cache
	logger *logger.Logger
}

// NewRedisCache creates a Redis-backed constituent cache.
func NewRedisCache(cache *redis.Cache, log *logger.Logger) *RedisCache {
	return &RedisCache{cache: cache, logger: log}
}

func (c *RedisCache) Load(ctx context.Context, indexName string) ([]string, bool) {
	var symbols []string
	found, err := c.cache.Get(ctx, redis.ConstituentsKey(slug(indexName)), &symbols)
	if err != nil {
		c.logger.WithError(err).WithField("index", indexName).Debug("Failed to load constituent cache")
		return nil, false
	}
	return symbols, found
}

func (c *RedisCache) Save(ctx context.Context, indexName string, symbols []string) {
	if err := c.cache.Set(ctx, redis.ConstituentsKey(slug(indexName)), symbols, redis.TTLWeekly); err != nil {
		c.logger.WithError(err).WithField("index", indexName).Warn("Failed to save constituent cache")
	}
}

func slug(indexName string) string {
	return strings.ToLower(fileNameReplacer.Replace(indexName))
}
