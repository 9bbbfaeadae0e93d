package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RedisClient is the minimal Redis surface the store needs. The concrete
// go-redis adapter lives in internal/infra and is injected at startup; this
// package never imports a driver.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisStore backs the reservation protocol with Redis. Uniqueness comes
// from SET NX; the pending-gated transitions are Lua scripts so the
// check and the write are a single store-side step.
type RedisStore struct {
	client    RedisClient
	keyPrefix string
}

// NewRedisStore creates a Redis-backed signature store. Signature keys have
// no TTL: a confirmed signature must stay unusable for the lifetime of the
// system, unlike throttle or session keys.
func NewRedisStore(client RedisClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "lotto:sig:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(signature string) string {
	return s.keyPrefix + signature
}

// confirmScript moves a pending record to confirmed in one store-side step.
const confirmScript = `
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local rec = cjson.decode(v)
if rec.status ~= 'pending' then return 0 end
rec.status = 'confirmed'
rec.wallet_address = ARGV[1]
rec.used_at = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(rec))
return 1
`

// releaseScript deletes a record only while it is still pending.
const releaseScript = `
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local rec = cjson.decode(v)
if rec.status ~= 'pending' then return 0 end
redis.call('DEL', KEYS[1])
return 1
`

func (s *RedisStore) InsertUnique(ctx context.Context, rec Record) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal signature record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(rec.Signature), data)
	if err != nil {
		return false, fmt.Errorf("redis SETNX signature: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ConfirmPending(ctx context.Context, signature, wallet string, usedAt time.Time) (bool, error) {
	res, err := s.client.Eval(ctx, confirmScript,
		[]string{s.key(signature)}, wallet, usedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("redis confirm signature: %w", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *RedisStore) DeletePending(ctx context.Context, signature string) (bool, error) {
	res, err := s.client.Eval(ctx, releaseScript, []string{s.key(signature)})
	if err != nil {
		return false, fmt.Errorf("redis release signature: %w", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, signature string) (*Record, error) {
	data, found, err := s.client.Get(ctx, s.key(signature))
	if err != nil {
		return nil, fmt.Errorf("redis GET signature: %w", err)
	}
	if !found {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal signature record: %w", err)
	}
	return &rec, nil
}
