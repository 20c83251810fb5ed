package notify

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/orders"
	"github.com/bizconnect/marketplace/internal/redisx"
)

// Consumer applies order events read from Kafka through a hook, skipping
// events already handled.
type Consumer struct {
	Hook  orders.Hook
	Dedup redisx.Dedup
	Log   *zap.SugaredLogger
}

// Handle is a kafka.Handler. Undecodable messages are logged and
// committed; hook errors leave the offset uncommitted.
func (c *Consumer) Handle(ctx context.Context, m kafka.Message) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	env, ev, err := orders.DecodeEnvelope(m.Value)
	if err != nil {
		log.Errorw("dropping undecodable event", "offset", m.Offset, "error", err)
		return nil
	}

	seen, err := c.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		log.Warnw("dedup lookup failed", "event_id", env.EventID, "error", err)
	}
	if seen {
		return nil
	}

	if err := c.Hook.AfterCommit(ctx, ev); err != nil {
		return err
	}
	if err := c.Dedup.Mark(ctx, env.EventID); err != nil {
		log.Warnw("dedup mark failed", "event_id", env.EventID, "error", err)
	}
	log.Debugw("event handled", "event_id", env.EventID, "event", env.EventType, "order_id", env.CorrelationID)
	return nil
}
