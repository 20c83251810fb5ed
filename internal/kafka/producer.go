package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages on an inbox and writes them from one goroutine.
type Producer struct {
	w       Writer
	log     *zap.SugaredLogger
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *zap.SugaredLogger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return NewProducerWithWriter(w, buf, log)
}

func NewProducerWithWriter(w Writer, buf int, log *zap.SugaredLogger) *Producer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled or Close is called; the
// remaining inbox is flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							p.closeWriter()
							return
						}
						p.write(m)
					default:
						p.closeWriter()
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Errorw("kafka write failed", "key", string(m.Key), "error", err)
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.log.Warnw("kafka writer close", "error", err)
	}
}

// Publish enqueues a message. It blocks while the inbox is full and gives
// up when ctx ends.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes and exits.
func (p *Producer) Close() { close(p.inbox) }

// WaitClosed blocks until the write loop has finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
