package notify

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/redisx"
)

// Repository is the persistence Inbox needs; Store implements it.
type Repository interface {
	Create(ctx context.Context, n Notice) error
	List(ctx context.Context, recipientID string, limit int) ([]Notice, error)
	MarkRead(ctx context.Context, recipientID, id string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

// Inbox is the notification API. Unread counts are kept in redis and
// rebuilt from the database on a miss; redis failures are logged only.
type Inbox struct {
	Repo  Repository
	RDB   redis.Cmdable
	Log   *zap.SugaredLogger
	Clock func() time.Time
}

func (in *Inbox) logger() *zap.SugaredLogger {
	if in.Log == nil {
		return zap.NewNop().Sugar()
	}
	return in.Log
}

// Create stores a notice for recipient.
func (in *Inbox) Create(ctx context.Context, n Notice) (Notice, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = TypeSystem
	}
	n.Message = truncate(strings.TrimSpace(n.Message), maxMessage)
	if in.Clock != nil {
		n.CreatedAt = in.Clock().UTC()
	} else {
		n.CreatedAt = time.Now().UTC()
	}
	if err := in.Repo.Create(ctx, n); err != nil {
		return Notice{}, err
	}
	if in.RDB != nil {
		key := redisx.UnreadKey(n.RecipientID)
		// only bump an existing counter; a missing one is rebuilt on read
		if err := incrIfExists.Run(ctx, in.RDB, []string{key}).Err(); err != nil && !redisx.Miss(err) {
			in.logger().Warnw("unread counter incr failed", "user_id", n.RecipientID, "error", err)
		}
	}
	return n, nil
}

func (in *Inbox) List(ctx context.Context, recipientID string, limit int) ([]Notice, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return in.Repo.List(ctx, recipientID, limit)
}

func (in *Inbox) MarkRead(ctx context.Context, recipientID, id string) error {
	changed, err := in.Repo.MarkRead(ctx, recipientID, id)
	if err != nil || !changed || in.RDB == nil {
		return err
	}
	if err := decrFloor.Run(ctx, in.RDB, []string{redisx.UnreadKey(recipientID)}).Err(); err != nil && !redisx.Miss(err) {
		in.logger().Warnw("unread counter decr failed", "user_id", recipientID, "error", err)
	}
	return nil
}

func (in *Inbox) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	n, err := in.Repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if in.RDB != nil {
		if err := in.RDB.Set(ctx, redisx.UnreadKey(recipientID), 0, redisx.TTLUnread).Err(); err != nil {
			in.logger().Warnw("unread counter reset failed", "user_id", recipientID, "error", err)
		}
	}
	return n, nil
}

// Unread returns the unread count, from redis when cached.
func (in *Inbox) Unread(ctx context.Context, recipientID string) (int64, error) {
	key := redisx.UnreadKey(recipientID)
	if in.RDB != nil {
		v, err := in.RDB.Get(ctx, key).Result()
		if err == nil {
			if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				return n, nil
			}
		} else if !redisx.Miss(err) {
			in.logger().Warnw("unread counter read failed", "user_id", recipientID, "error", err)
		}
	}
	n, err := in.Repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if in.RDB != nil {
		if err := in.RDB.Set(ctx, key, n, redisx.TTLUnread).Err(); err != nil {
			in.logger().Warnw("unread counter write failed", "user_id", recipientID, "error", err)
		}
	}
	return n, nil
}

var incrIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return redis.call("INCR", KEYS[1])
end
return nil`)

var decrFloor = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]))
if v == nil then
  return nil
end
if v > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0`)
