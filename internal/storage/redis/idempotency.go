// Package redis implements the idempotency store on Redis. Keys are claimed
// with SET NX and completed attempts cache their result for replay; the
// unique index on orders.idempotency_key is the durable backstop behind the
// cache TTL.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/evercart/checkout/internal/domain/order"
)

const keyPrefix = "checkout:idem:"

// pendingMarker marks a claimed key whose attempt has not finished. Any JSON
// payload under the key is a completed StoredResult.
const pendingMarker = "pending"

// claimScript claims the key when absent and otherwise returns the stored
// value, in one round trip so two racing attempts cannot both claim it.
var claimScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
	return v
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return false
`)

// IdempotencyStore implements order.IdempotencyStore on Redis.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ order.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore returns a store whose entries live for ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Begin claims the key or resolves the prior attempt.
func (s *IdempotencyStore) Begin(ctx context.Context, key, fingerprint string) (*order.StoredResult, bool, error) {
	v, err := claimScript.Run(ctx, s.client,
		[]string{keyPrefix + key}, pendingMarker, s.ttl.Milliseconds()).Result()
	if errors.Is(err, redis.Nil) {
		// Script returned false: the key was absent and is now claimed.
		return nil, true, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "claim idempotency key")
	}

	raw, ok := v.(string)
	if !ok {
		return nil, true, nil
	}
	if raw == pendingMarker {
		return nil, false, order.ErrCheckoutInProgress
	}

	var res order.StoredResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, false, errors.Wrap(err, "decode stored result")
	}
	if res.Fingerprint != fingerprint {
		return nil, false, order.ErrIdempotencyConflict
	}
	return &res, false, nil
}

// Complete stores the attempt outcome for future replays.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, res order.StoredResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "encode stored result")
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "store idempotency result")
	}
	return nil
}

// Abort releases a claimed key after a failed attempt so the client can
// retry with the same key.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "release idempotency key")
	}
	return nil
}
