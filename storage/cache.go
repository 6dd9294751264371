package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

// MemcacheCache implements CacheService using memcache.
type MemcacheCache struct {
	client *memcache.Client
}

// NewMemcacheCache creates a memcache-backed cache.
func NewMemcacheCache(serverAddr string) *MemcacheCache {
	return &MemcacheCache{client: memcache.New(serverAddr)}
}

func (m *MemcacheCache) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (m *MemcacheCache) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

func (m *MemcacheCache) Delete(key string) error {
	return m.client.Delete(key)
}

func (m *MemcacheCache) Close() error {
	return m.client.Close()
}

// Ping reports whether the server answers.
func (m *MemcacheCache) Ping() error {
	return m.client.Ping()
}

// RedisCache implements CacheService using Redis string keys.
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache creates a redis-backed cache.
func NewRedisCache(addr string, db int) *RedisCache {
	return &RedisCache{
		client:  redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		timeout: 5 * time.Second,
	}
}

func (r *RedisCache) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Get(ctx, key).Bytes()
}

func (r *RedisCache) Set(key string, value []byte, expiration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCache) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping reports whether the server answers.
func (r *RedisCache) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// NewCache builds the cache named by backend ("memcache", "redis") and
// checks it is reachable. "none" or "" returns a nil cache.
func NewCache(backend, memcacheAddr, redisAddr string, redisDB int) (CacheService, error) {
	switch backend {
	case "", "none":
		return nil, nil
	case "memcache":
		c := NewMemcacheCache(memcacheAddr)
		if err := c.Ping(); err != nil {
			return nil, fmt.Errorf("cache: memcache %s: %w", memcacheAddr, err)
		}
		return c, nil
	case "redis":
		c := NewRedisCache(redisAddr, redisDB)
		if err := c.Ping(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("cache: redis %s: %w", redisAddr, err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", backend)
	}
}
