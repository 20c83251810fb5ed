package orders

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPacked    Status = "packed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// rank orders statuses by advancement; cancelled and refunded sit above
// delivered so that aggregate status follows the same table everywhere.
var rank = map[Status]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPacked:    2,
	StatusShipped:   3,
	StatusDelivered: 4,
	StatusCancelled: 5,
	StatusRefunded:  6,
}

var statusLabels = map[Status]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusPacked:    "Packed",
	StatusShipped:   "Shipped",
	StatusDelivered: "Delivered",
	StatusCancelled: "Cancelled",
	StatusRefunded:  "Refunded",
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := rank[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

func (s Status) Rank() int { return rank[s] }

// Label is the human form used in emails and notifications.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Closed reports whether the status ends the order's payment flow.
func (s Status) Closed() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Aggregate returns the most advanced status in statuses. An empty set
// aggregates to pending.
func Aggregate(statuses []Status) Status {
	out := StatusPending
	for _, s := range statuses {
		if rank[s] > rank[out] {
			out = s
		}
	}
	return out
}

// ItemTransitioned records that one line item moved between statuses.
type ItemTransitioned struct {
	ItemID string
	From   Status
	To     Status
}

// NextOrderStatus applies ev to the current item statuses and returns the
// resulting aggregate, plus whether it differs from current. items is not
// modified.
func NextOrderStatus(current Status, items map[string]Status, ev ItemTransitioned) (Status, bool) {
	statuses := make([]Status, 0, len(items)+1)
	seen := false
	for id, s := range items {
		if id == ev.ItemID {
			s = ev.To
			seen = true
		}
		statuses = append(statuses, s)
	}
	if !seen {
		statuses = append(statuses, ev.To)
	}
	next := Aggregate(statuses)
	return next, next != current
}

// Fulfillment summarises per-item progress next to the rank-based aggregate.
type Fulfillment struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	Closed    int `json:"closed"`
	Open      int `json:"open"`
	// Percent of non-closed items already delivered.
	Percent int `json:"percent"`
}

func Summarize(items []OrderItem) Fulfillment {
	f := Fulfillment{Total: len(items)}
	for _, it := range items {
		switch {
		case it.Status.Closed():
			f.Closed++
		case it.Status == StatusDelivered:
			f.Delivered++
		default:
			f.Open++
		}
	}
	if active := f.Total - f.Closed; active > 0 {
		f.Percent = f.Delivered * 100 / active
	}
	return f
}
