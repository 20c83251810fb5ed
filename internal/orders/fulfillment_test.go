package orders_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizconnect/marketplace/internal/orders"
)

func TestUpdateItemStatusDeliveredDecrementsStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 2})
	itemID := o.Items[0].ID

	res, err := f.svc.UpdateItemStatus(ctx, sellerA, itemID, "delivered")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.OrderChanged)
	assert.Equal(t, orders.StatusDelivered, res.Order.Status)
	require.NotNil(t, res.Item.DeliveredAt)
	require.NotNil(t, res.Order.DeliveredAt)
	assert.Equal(t, 3, f.store.Product("A").Stock)

	stamped := *res.Item.DeliveredAt
	_, err = f.svc.UpdateItemStatus(ctx, sellerA, itemID, "shipped")
	require.NoError(t, err)
	res, err = f.svc.UpdateItemStatus(ctx, sellerA, itemID, "delivered")
	require.NoError(t, err)
	assert.Equal(t, 3, f.store.Product("A").Stock, "stock decremented only on first delivery")
	assert.Equal(t, stamped, *res.Item.DeliveredAt)
}

func TestUpdateItemStatusFullWalk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 2})
	itemID := o.Items[0].ID

	var stamped *orders.OrderItem
	for _, st := range []string{"confirmed", "packed", "shipped", "delivered"} {
		res, err := f.svc.UpdateItemStatus(ctx, sellerA, itemID, st)
		require.NoError(t, err, st)
		assert.True(t, res.Changed, st)
		assert.Equal(t, orders.Status(st), res.Item.Status)
		if st != "delivered" {
			assert.Nil(t, res.Item.DeliveredAt, st)
			assert.Equal(t, 5, f.store.Product("A").Stock, "stock untouched before delivery")
		} else {
			item := res.Item
			stamped = &item
		}
	}
	require.NotNil(t, stamped)
	require.NotNil(t, stamped.DeliveredAt)
	assert.Equal(t, 3, f.store.Product("A").Stock)

	res, err := f.svc.UpdateItemStatus(ctx, sellerA, itemID, "delivered")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, *stamped.DeliveredAt, *res.Item.DeliveredAt)
	assert.Equal(t, 3, f.store.Product("A").Stock)

	logs, err := f.store.Logs(ctx, o.ID)
	require.NoError(t, err)
	type step struct{ from, to orders.Status }
	var items []step
	for _, l := range logs {
		if !strings.HasPrefix(l.Note, `Item "`) {
			continue
		}
		require.NotNil(t, l.OldStatus, l.Note)
		items = append(items, step{*l.OldStatus, l.NewStatus})
	}
	assert.Equal(t, []step{
		{orders.StatusPending, orders.StatusConfirmed},
		{orders.StatusConfirmed, orders.StatusPacked},
		{orders.StatusPacked, orders.StatusShipped},
		{orders.StatusShipped, orders.StatusDelivered},
	}, items)

	got, err := f.svc.Status(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, got)
}

func TestUpdateItemStatusStockFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 4})
	// another buyer's delivery drained the stock in between
	p := f.store.Product("A")
	p.Stock = 1
	f.store.AddProduct(p)

	_, err := f.svc.UpdateItemStatus(ctx, sellerA, o.Items[0].ID, "delivered")
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.Product("A").Stock)
}

func TestUpdateItemStatusAggregatesAcrossSellers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1}, orders.CartEntry{ProductID: "B", Quantity: 1})
	a, b := o.Items[0].ID, o.Items[1].ID

	res, err := f.svc.UpdateItemStatus(ctx, sellerA, a, "shipped")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, res.Order.Status)
	require.NotNil(t, res.Item.ShippedAt)
	require.NotNil(t, res.Order.ShippedAt)

	res, err = f.svc.UpdateItemStatus(ctx, sellerB, b, "packed")
	require.NoError(t, err)
	assert.False(t, res.OrderChanged)
	assert.Equal(t, orders.StatusShipped, res.Order.Status)

	res, err = f.svc.UpdateItemStatus(ctx, sellerB, b, "delivered")
	require.NoError(t, err)
	assert.True(t, res.OrderChanged)
	assert.Equal(t, orders.StatusDelivered, res.Order.Status)
	assert.Equal(t, 50, orders.Summarize(res.Order.Items).Percent)

	logs, _ := f.store.Logs(ctx, o.ID)
	var notes []string
	for _, l := range logs {
		notes = append(notes, l.Note)
	}
	assert.Equal(t, []string{
		"Order placed by buyer.",
		`Item "A" updated to shipped.`,
		"Order status updated based on items (now shipped).",
		`Item "B" updated to packed.`,
		`Item "B" updated to delivered.`,
		"Order status updated based on items (now delivered).",
	}, notes)

	types := f.events.Types()
	assert.Equal(t, []orders.EventType{
		orders.EventOrderPlaced,
		orders.EventItemStatusChanged, orders.EventOrderStatusChanged,
		orders.EventItemStatusChanged,
		orders.EventItemStatusChanged, orders.EventOrderStatusChanged,
	}, types)
}

func TestUpdateItemStatusCancelledOutranksDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1}, orders.CartEntry{ProductID: "B", Quantity: 1})

	_, err := f.svc.UpdateItemStatus(ctx, sellerA, o.Items[0].ID, "delivered")
	require.NoError(t, err)
	res, err := f.svc.UpdateItemStatus(ctx, sellerB, o.Items[1].ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, res.Order.Status)
}

func TestUpdateItemStatusSameStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	res, err := f.svc.UpdateItemStatus(ctx, sellerA, o.Items[0].ID, "pending")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	logs, _ := f.store.Logs(ctx, o.ID)
	assert.Len(t, logs, 1)
	assert.Len(t, f.events.Events(), 1)
}

func TestUpdateItemStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	itemID := o.Items[0].ID

	_, err := f.svc.UpdateItemStatus(ctx, sellerA, itemID, "lost")
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)

	_, err = f.svc.UpdateItemStatus(ctx, sellerB, itemID, "shipped")
	assert.ErrorIs(t, err, orders.ErrNotOwner)

	_, err = f.svc.UpdateItemStatus(ctx, sellerA, "missing", "shipped")
	assert.ErrorIs(t, err, orders.ErrNotFound)

	got, _ := f.svc.Status(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, got)

	logs, err := f.store.Logs(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "only the placement entry")
	assert.Equal(t, 5, f.store.Product("A").Stock)
	item, err := f.store.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, item.Status)
}

func TestUpdateItemStatusRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 2})
	f.store.Fail = func(op string) error {
		if op == "UpdateOrderStatus" {
			return assert.AnError
		}
		return nil
	}

	_, err := f.svc.UpdateItemStatus(ctx, sellerA, o.Items[0].ID, "delivered")
	require.ErrorIs(t, err, assert.AnError)

	f.store.Fail = nil
	item, err := f.store.GetItem(ctx, o.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, item.Status)
	assert.Nil(t, item.DeliveredAt)
	assert.Equal(t, 5, f.store.Product("A").Stock)
}
