package redisx

import (
	"fmt"
	"time"
)

const (
	// Checkout idempotency: idem:order:create:{buyer_id}:{idempotency_key} -> order_id,
	// or "pending" while the first request is placing the order
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Status cache: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup of consumed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Unread notifications: notif:unread:{user_id} -> count
	KeyUnread = "notif:unread:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// a crashed request must not block its key for a whole day
	TTLIdemPending = time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLUnread      = 7 * 24 * time.Hour
)

func IdemOrderCreateKey(buyerID, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, buyerID, key)
}

func OrderStatusKey(orderID string) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }

func UnreadKey(userID string) string { return fmt.Sprintf(KeyUnread, userID) }
