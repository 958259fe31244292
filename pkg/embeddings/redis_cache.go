package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheConfig holds Redis cache configuration.
type RedisCacheConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"password"`
	Database     int           `json:"database"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
	TTL          time.Duration `json:"ttl"`
}

// DefaultRedisCacheConfig returns the default Redis cache configuration.
func DefaultRedisCacheConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Address:      "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "indexpipe",
		TTL:          24 * time.Hour,
	}
}

// RedisCache caches embeddings in Redis so re-indexing unchanged documents
// skips the provider entirely. Cache failures are logged and treated as
// misses; the pipeline never depends on the cache being up.
type RedisCache struct {
	client *redis.Client
	config *RedisCacheConfig
	logger *slog.Logger
}

type embeddingCacheEntry struct {
	Embedding []float32 `json:"embedding"`
	ModelName string    `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config *RedisCacheConfig, logger *slog.Logger) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisCacheConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.Database,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	cache := &RedisCache{
		client: rdb,
		config: config,
		logger: logger.With("component", "redis-cache"),
	}
	cache.logger.Info("redis embedding cache initialized", "address", config.Address, "database", config.Database)
	return cache, nil
}

// Get returns the cached embedding for (model, text), if any.
func (rc *RedisCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	data, err := rc.client.Get(ctx, rc.key(model, text)).Result()
	if err != nil {
		if err != redis.Nil {
			rc.logger.Warn("embedding cache read failed", "error", err)
		}
		return nil, false
	}
	var entry embeddingCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		rc.logger.Warn("corrupt embedding cache entry", "error", err)
		return nil, false
	}
	return entry.Embedding, true
}

// Set stores an embedding for (model, text) under the configured TTL.
func (rc *RedisCache) Set(ctx context.Context, model, text string, embedding []float32) {
	entry := embeddingCacheEntry{
		Embedding: embedding,
		ModelName: model,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		rc.logger.Warn("failed to marshal embedding cache entry", "error", err)
		return
	}
	if err := rc.client.Set(ctx, rc.key(model, text), data, rc.config.TTL).Err(); err != nil {
		rc.logger.Warn("embedding cache write failed", "error", err)
	}
}

// Close releases the Redis connection pool.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) key(model, text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	h.Write([]byte(model))
	return fmt.Sprintf("%s:embedding:%016x", rc.config.KeyPrefix, h.Sum64())
}
