// Package cache provides the optional Redis L2 behind the in-process query embedding cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/notesrag/internal/profile"
)

// L2 is a shared byte cache consulted after the in-process LRU misses.
// Implementations log and swallow transport errors: a broken L2 only costs a cache miss.
type L2 interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	Close() error
}

// RedisCacheConfig holds the Redis connection configuration.
type RedisCacheConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "notesrag:",
		DefaultTTL:   24 * time.Hour,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisConfigFromProfile builds the Redis configuration from the profile.
func RedisConfigFromProfile(p *profile.Profile) *RedisCacheConfig {
	config := DefaultRedisConfig()
	config.Addr = p.RedisAddr
	config.Password = p.RedisPassword
	config.DB = p.RedisDB
	return config
}

// NewL2 connects to Redis when the profile enables it, and returns a no-op cache otherwise.
func NewL2(ctx context.Context, p *profile.Profile) (L2, error) {
	if !p.IsRedisEnabled() {
		return NewNilRedisCache(), nil
	}
	return NewRedisCache(ctx, RedisConfigFromProfile(p))
}

// RedisCache is a Redis-based cache implementation for L2 caching.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisCache creates a new Redis cache and verifies the connection.
func NewRedisCache(ctx context.Context, config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.Info("Redis cache connected", "addr", config.Addr, "db", config.DB)

	return &RedisCache{
		client:     client,
		keyPrefix:  config.KeyPrefix,
		defaultTTL: config.DefaultTTL,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("failed to get cache value", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.fullKey(key), value, ttl).Err(); err != nil {
		slog.Warn("failed to set cache value", "key", key, "error", err)
	}
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.fullKey(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		slog.Warn("failed to delete cache values", "count", len(keys), "error", err)
	}
}

// DeletePrefix removes every key starting with prefix, scanning in batches of 100.
func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) {
	iter := r.client.Scan(ctx, 0, r.fullKey(prefix)+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			r.client.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
	if err := iter.Err(); err != nil {
		slog.Warn("failed to scan cache keys", "prefix", prefix, "error", err)
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) fullKey(key string) string {
	return r.keyPrefix + key
}

// GenerateCacheKey joins components with ':' and appends a short hash of the last one,
// keeping keys bounded for long texts.
func GenerateCacheKey(components ...string) string {
	if len(components) == 0 {
		return ""
	}
	head := components[:len(components)-1]
	last := components[len(components)-1]
	return strings.Join(append(append([]string{}, head...), KeyHash(last)), ":")
}

// KeyHash returns the first 16 hex characters of the SHA-256 of key.
func KeyHash(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:16]
}

// NilRedisCache is a no-op L2, used when Redis is not configured.
type NilRedisCache struct{}

// NewNilRedisCache creates a no-op Redis cache.
func NewNilRedisCache() *NilRedisCache {
	return &NilRedisCache{}
}

func (*NilRedisCache) Get(context.Context, string) ([]byte, bool) {
	return nil, false
}

func (*NilRedisCache) Set(context.Context, string, []byte, time.Duration) {}

func (*NilRedisCache) Delete(context.Context, ...string) {}

func (*NilRedisCache) Close() error {
	return nil
}

var (
	_ L2 = (*RedisCache)(nil)
	_ L2 = (*NilRedisCache)(nil)
)
