// Package infra provides the concrete Redis adapter. Consumer packages
// (replay, throttle, session) each declare the minimal client surface they
// need; this adapter wraps go-redis v9 and satisfies all of them. It is
// constructed once in cmd/api and injected.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisAdapter wraps go-redis v9.
type GoRedisAdapter struct {
	rdb *redis.Client
}

// NewGoRedisAdapter connects to Redis and verifies connectivity with a ping.
// The replay protocol fails closed, so an unreachable Redis at startup is a
// startup failure, not a silent fallback.
func NewGoRedisAdapter(addr, password string, db int) (*GoRedisAdapter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("Redis connected", "addr", addr, "db", db)
	return &GoRedisAdapter{rdb: rdb}, nil
}

// Close shuts down the underlying redis client.
func (a *GoRedisAdapter) Close() error {
	return a.rdb.Close()
}

// SetNX creates the key iff absent. No TTL: used for signature records,
// which must outlive any window.
func (a *GoRedisAdapter) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return a.rdb.SetNX(ctx, key, value, 0).Result()
}

// Set writes a key with a TTL (0 means no expiry).
func (a *GoRedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns the value and whether the key exists.
func (a *GoRedisAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := a.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Del removes keys.
func (a *GoRedisAdapter) Del(ctx context.Context, keys ...string) error {
	return a.rdb.Del(ctx, keys...).Err()
}

// Eval runs a Lua script. The replay store uses this for its pending-gated
// state transitions.
func (a *GoRedisAdapter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return a.rdb.Eval(ctx, script, keys, args...).Result()
}

// PTTL returns the remaining lifetime of a key, or false when the key does
// not exist or has no expiry.
func (a *GoRedisAdapter) PTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := a.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}
