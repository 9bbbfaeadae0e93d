// Package throttle bounds request rate per wallet independent of payment
// validity. Unlike the replay protocol this is a comfort gate, so it fails
// open: if the store is unreachable the game stays playable.
package throttle

import (
	"context"
	"log/slog"
	"time"
)

// RedisClient is the minimal Redis surface the throttle needs; the concrete
// adapter lives in internal/infra.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	PTTL(ctx context.Context, key string) (time.Duration, bool, error)
}

// Result of a throttle check. RetryAfter is set only when the request is
// rejected.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Throttle is a per-wallet minimum-interval gate. The record expires on its
// own via TTL; its presence is the entire state.
type Throttle struct {
	client    RedisClient
	keyPrefix string
	window    time.Duration
}

// New creates a throttle with the given minimum interval between requests.
func New(client RedisClient, window time.Duration) *Throttle {
	if window <= 0 {
		window = time.Second
	}
	return &Throttle{client: client, keyPrefix: "lotto:throttle:", window: window}
}

// Check reports whether the wallet may proceed. Store errors allow the
// request: availability beats the soft limit.
func (t *Throttle) Check(ctx context.Context, wallet string) Result {
	remaining, exists, err := t.client.PTTL(ctx, t.keyPrefix+wallet)
	if err != nil {
		slog.Warn("[Throttle] Check failed, allowing request", "error", err)
		return Result{Allowed: true}
	}
	if exists {
		return Result{Allowed: false, RetryAfter: remaining}
	}
	return Result{Allowed: true}
}

// Record upserts the wallet's request timestamp with the window as TTL.
// Failures are logged and swallowed.
func (t *Throttle) Record(ctx context.Context, wallet string) {
	value := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := t.client.Set(ctx, t.keyPrefix+wallet, value, t.window); err != nil {
		slog.Warn("[Throttle] Record failed", "wallet", wallet, "error", err)
	}
}
