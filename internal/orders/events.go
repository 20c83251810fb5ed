package orders

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventPaymentRecorded    EventType = "payment.recorded"
	EventPaymentSubmitted   EventType = "payment.submitted"
	EventPaymentConfirmed   EventType = "payment.confirmed"
	EventItemStatusChanged  EventType = "item.status_changed"
	EventOrderStatusChanged EventType = "order.status_changed"
)

const TopicOrderEvents = "shop.order.events"

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// Event describes a committed state change. Order is a snapshot taken after
// the commit, items included.
type Event struct {
	ID         string     `json:"id"`
	Type       EventType  `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	Actor      Actor      `json:"actor"`
	Order      Order      `json:"order"`
	Item       *OrderItem `json:"item,omitempty"`
	Payment    *Payment   `json:"payment,omitempty"`
	From       Status     `json:"from,omitempty"`
	To         Status     `json:"to,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Envelope is the wire format on the event topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     EventType       `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}
