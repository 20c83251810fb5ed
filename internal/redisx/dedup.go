package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Dedup marks consumed event ids per service.
type Dedup struct {
	RDB     redis.Cmdable
	Service string
}

// Seen reports whether eventID was already marked.
func (d Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.RDB, DedupKey(d.Service, eventID))
}

// Mark records eventID once processing has succeeded.
func (d Dedup) Mark(ctx context.Context, eventID string) error {
	return d.RDB.Set(ctx, DedupKey(d.Service, eventID), "1", TTLDedup).Err()
}
