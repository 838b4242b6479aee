// Package slotcache memoizes slot searches for a short TTL.
package slotcache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ComputeFunc produces a value and reports whether it may be stored.
type ComputeFunc func(ctx context.Context) ([]byte, bool, error)

// Redis is shared by every replica. Redis errors are logged and the value is computed.
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewRedis(opts RedisOptions, logger *slog.Logger) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return newRedis(rdb, opts.Prefix, logger)
}

func newRedis(rdb *redis.Client, prefix string, logger *slog.Logger) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "huddle"
	}
	return &Redis{rdb: rdb, prefix: prefix, logger: logger}
}

func (c *Redis) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, bool, error)) ([]byte, error) {
	full := c.prefix + ":" + key
	cached, err := c.rdb.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("slot cache read failed", "err", err)
	}

	val, store, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if store && ttl > 0 {
		if err := c.rdb.Set(ctx, full, val, ttl).Err(); err != nil {
			c.logger.Warn("slot cache write failed", "err", err)
		}
	}
	return val, nil
}

// Ready is a readiness probe.
func (c *Redis) Ready(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
