package orders

import (
	"context"
	"time"
)

// Store is the persistence port of the order core.
type Store interface {
	Queries
	// InTx runs fn in one transaction: committed when fn returns nil,
	// rolled back otherwise.
	InTx(ctx context.Context, fn func(q Queries) error) error
}

type Queries interface {
	// ActiveProducts returns the active products among ids, keyed by id.
	ActiveProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// DecrementStock lowers stock by qty, floored at zero.
	DecrementStock(ctx context.Context, productID string, qty int) error

	InsertOrder(ctx context.Context, o Order) error
	InsertItem(ctx context.Context, it OrderItem) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// LockOrder reads the order with its items and holds a row lock until
	// the transaction ends.
	LockOrder(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, o Order) error
	BuyerOrders(ctx context.Context, buyerID string) ([]Order, error)

	GetItem(ctx context.Context, id string) (OrderItem, error)
	// CompareAndSetItemStatus moves the item from `from` to it.Status and
	// stamps it.ShippedAt when not yet set; false means the stored status no
	// longer equals from.
	CompareAndSetItemStatus(ctx context.Context, it OrderItem, from Status) (bool, error)
	// MarkItemDelivered stamps delivered_at once; false when already stamped.
	MarkItemDelivered(ctx context.Context, itemID string, at time.Time) (bool, error)
	SellerLines(ctx context.Context, sellerID string) ([]SellerLine, error)

	InsertLog(ctx context.Context, l StatusLog) error
	Logs(ctx context.Context, orderID string) ([]StatusLog, error)

	GetPayment(ctx context.Context, orderID string) (Payment, error)
	UpsertPayment(ctx context.Context, p Payment) error
}
