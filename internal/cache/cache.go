package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-kpi/internal/config"
	"go-kpi/internal/metrics"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encoded values with a TTL
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// NewCache connects to Redis when REDIS_ADDR is set and falls back to a no-op cache otherwise
func NewCache(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) Cache {
	if cfg.RedisAddr == "" {
		log.Info("history cache disabled")
		return NoopCache{}
	}

	c, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.HistoryCacheTTL)
	if err != nil {
		log.Warn("redis unavailable, history cache disabled", zap.Error(err))
		return NoopCache{}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.client.Close()
		},
	})
	return c
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, defaultTTL time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: defaultTTL}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheOperation("get", "miss")
		return ErrMiss
	}
	if err != nil {
		metrics.RecordCacheOperation("get", "error")
		return err
	}
	metrics.RecordCacheOperation("get", "hit")
	return json.Unmarshal(b, dest)
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		metrics.RecordCacheOperation("set", "error")
		return fmt.Errorf("marshal value for key %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.RecordCacheOperation("set", "error")
		return err
	}
	metrics.RecordCacheOperation("set", "success")
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordCacheOperation("delete", "error")
		return err
	}
	metrics.RecordCacheOperation("delete", "success")
	return nil
}

func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		metrics.RecordCacheOperation("delete", "error")
		return err
	}
	return r.Delete(ctx, keys...)
}

// NoopCache always misses
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrMiss
}

func (NoopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (NoopCache) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (NoopCache) DeletePrefix(ctx context.Context, prefix string) error {
	return nil
}
