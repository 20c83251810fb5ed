package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/orders"
)

// CachedStatus is the cached body served by the status endpoint.
type CachedStatus struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	Label     string        `json:"label"`
	UpdatedAt time.Time     `json:"updated_at"`
	Cached    bool          `json:"cached"`
}

// StatusLoader reads an order's status from the source of truth.
type StatusLoader interface {
	Status(ctx context.Context, orderID string) (orders.Status, error)
}

// StatusCache is a read-through cache of aggregate order status. It is
// also a post-commit hook that drops the entry of every changed order.
type StatusCache struct {
	RDB    redis.Cmdable
	Loader StatusLoader
	Log    *zap.SugaredLogger
	Clock  func() time.Time
}

func (c *StatusCache) now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

// Get serves from redis when possible. Redis errors degrade to a direct
// load; they never fail the read.
func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, error) {
	key := OrderStatusKey(orderID)
	raw, err := c.RDB.Get(ctx, key).Bytes()
	if err == nil {
		var cs CachedStatus
		if jerr := json.Unmarshal(raw, &cs); jerr == nil {
			cs.Cached = true
			return cs, nil
		}
	} else if !Miss(err) && c.Log != nil {
		c.Log.Warnw("status cache read failed", "order_id", orderID, "error", err)
	}

	st, err := c.Loader.Status(ctx, orderID)
	if err != nil {
		return CachedStatus{}, err
	}
	cs := CachedStatus{OrderID: orderID, Status: st, Label: st.Label(), UpdatedAt: c.now()}
	b, _ := json.Marshal(cs)
	if err := c.RDB.Set(ctx, key, b, TTLStatusCache).Err(); err != nil && c.Log != nil {
		c.Log.Warnw("status cache write failed", "order_id", orderID, "error", err)
	}
	return cs, nil
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, OrderStatusKey(orderID)).Err()
}

func (c *StatusCache) AfterCommit(ctx context.Context, ev orders.Event) error {
	return c.Invalidate(ctx, ev.Order.ID)
}
