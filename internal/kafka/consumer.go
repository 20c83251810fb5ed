package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was handled and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer hands each partition to a single worker, so messages of one
// partition (and therefore one order key) are handled in offset order. A
// failing message is retried until it succeeds or ctx ends; later offsets of
// that partition wait behind it and are never committed past it.
type Consumer struct {
	r       Reader
	workers int
	log     *zap.SugaredLogger

	retryBase time.Duration
	retryMax  time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.SugaredLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, workers, log)
}

func NewConsumerWithReader(r Reader, workers int, log *zap.SugaredLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Consumer{r: r, workers: workers, log: log, retryBase: 200 * time.Millisecond, retryMax: 5 * time.Second}
}

// Start fetches messages and routes them to workers by partition until ctx
// is cancelled. Offsets are committed only after h succeeds.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	shards := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, h, m) {
					// ctx ended mid-retry; leave the rest uncommitted
					return
				}
			}
		}(shards[i])
	}
	stop := func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case shards[shardOf(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle runs h until it succeeds, then commits. It reports false when ctx
// ended before the message could be handled.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	wait := c.retryBase
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		c.log.Warnw("handler failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > c.retryMax {
			wait = c.retryMax
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		c.log.Errorw("commit failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
	}
	return true
}

func shardOf(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}
