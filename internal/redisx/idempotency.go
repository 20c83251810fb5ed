package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const idemPending = "pending"

// Idempotency maps a buyer's Idempotency-Key to the order it produced. A key
// is claimed with Reserve before the order is placed, so concurrent requests
// with the same key cannot both create one.
type Idempotency struct {
	RDB redis.Cmdable
}

// Reserve claims key. When the key is already taken, reserved is false and
// orderID holds the order it produced, or is empty while that request is
// still in flight.
func (i Idempotency) Reserve(ctx context.Context, buyerID, key string) (orderID string, reserved bool, err error) {
	k := IdemOrderCreateKey(buyerID, key)
	ok, err := i.RDB.SetNX(ctx, k, idemPending, TTLIdemPending).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if Miss(err) {
		// released or expired in between; the caller may retry
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == idemPending {
		return "", false, nil
	}
	return v, false, nil
}

// Complete records the order placed under a reserved key.
func (i Idempotency) Complete(ctx context.Context, buyerID, key, orderID string) error {
	return i.RDB.Set(ctx, IdemOrderCreateKey(buyerID, key), orderID, TTLIdempotency).Err()
}

// Release frees a reserved key after the order could not be placed.
func (i Idempotency) Release(ctx context.Context, buyerID, key string) error {
	return i.RDB.Del(ctx, IdemOrderCreateKey(buyerID, key)).Err()
}
