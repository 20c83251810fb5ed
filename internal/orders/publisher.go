package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	ikafka "github.com/bizconnect/marketplace/internal/kafka"
)

// Publisher is satisfied by *kafka.Producer from the internal kafka package.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// EventPublisher is a post-commit hook that writes every event to the order
// events topic, keyed by order id.
type EventPublisher struct {
	Pub      Publisher
	Producer string
}

func (p EventPublisher) AfterCommit(ctx context.Context, ev Event) error {
	env, err := NewEnvelope(ev, p.Producer)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.Pub.Publish(ctx, PartitionKey(ev.Order.ID), b,
		kafka.Header{Key: "event_type", Value: []byte(ev.Type)})
}

// NewEnvelope wraps ev for the wire.
func NewEnvelope(ev Event, producer string) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event: %w", err)
	}
	return Envelope{
		EventID:       ev.ID,
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    ev.OccurredAt,
		Producer:      producer,
		CorrelationID: ev.Order.ID,
		Payload:       payload,
	}, nil
}

// DecodeEnvelope parses a wire message back into its event.
func DecodeEnvelope(b []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	ev, err := ikafka.UnwrapPayload[Event](env.Payload)
	if err != nil {
		return env, Event{}, err
	}
	return env, ev, nil
}
