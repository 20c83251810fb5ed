package orders

import (
	"strings"

	"github.com/google/uuid"
)

const numberPrefix = "BC-"

// NewOrderNumber returns "BC-" plus 8 uppercase characters of a random UUID.
// Uniqueness is enforced by the orders.order_number constraint.
func NewOrderNumber() string {
	return numberPrefix + strings.ToUpper(uuid.NewString()[:8])
}
