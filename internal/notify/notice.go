// Package notify records in-app notifications and turns order events into
// notifications and emails.
package notify

import (
	"errors"
	"time"
)

type Type string

const (
	TypeMessage Type = "message"
	TypeOrder   Type = "order"
	TypeSystem  Type = "system"
	TypeReport  Type = "report"
)

type Notice struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	ActorID     *string   `json:"actor_id,omitempty"`
	Type        Type      `json:"type"`
	Message     string    `json:"message"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

var ErrNotFound = errors.New("notification not found")

// maxMessage is the column width of notifications.message.
const maxMessage = 400

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
