package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizconnect/marketplace/internal/orders"
	"github.com/bizconnect/marketplace/internal/orders/orderstest"
)

const (
	buyer   = "buyer-1"
	sellerA = "seller-a"
	sellerB = "seller-b"
)

type fixture struct {
	store    *orderstest.MemStore
	checkout *orderstest.Checkout
	proofs   *orderstest.Proofs
	events   *orderstest.Recorder
	svc      *orders.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    orderstest.New(),
		checkout: &orderstest.Checkout{Statuses: map[string]orders.CheckoutStatus{}},
		proofs:   &orderstest.Proofs{},
		events:   &orderstest.Recorder{},
	}
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc = &orders.Service{
		Store:    f.store,
		Checkout: f.checkout,
		Proofs:   f.proofs,
		SiteURL:  "https://shop.test/",
		Clock: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
	f.svc.AddHook("recorder", f.events)
	f.store.AddUser(buyer, "juan")
	f.store.AddProduct(orders.Product{ID: "A", SellerID: sellerA, Name: "A", Price: decimal.RequireFromString("100.00"), Stock: 5, Active: true})
	f.store.AddProduct(orders.Product{ID: "B", SellerID: sellerB, Name: "B", Price: decimal.RequireFromString("49.50"), Stock: 3, Active: true})
	return f
}

func (f *fixture) place(t *testing.T, cart ...orders.CartEntry) orders.Order {
	t.Helper()
	o, err := f.svc.PlaceOrder(context.Background(), buyer, cart, "12 Rizal St, Manila", "")
	require.NoError(t, err)
	return o
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var verr *orders.ValidationError
	require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
	return verr.Messages
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 2})

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("200.00")), o.Total.String())
	assert.Regexp(t, `^BC-[0-9A-F]{8}$`, o.Number)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 1, o.Items[0].Line)
	assert.Equal(t, sellerA, o.Items[0].SellerID)
	assert.Equal(t, orders.StatusPending, o.Items[0].Status)

	// stock is checked, not reserved
	assert.Equal(t, 5, f.store.Product("A").Stock)

	logs, err := f.store.Logs(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].OldStatus)
	assert.Equal(t, orders.StatusPending, logs[0].NewStatus)
	assert.Equal(t, "Order placed by buyer.", logs[0].Note)
	id, ok := logs[0].Actor.UserID()
	assert.True(t, ok)
	assert.Equal(t, buyer, id)

	assert.Equal(t, []orders.EventType{orders.EventOrderPlaced}, f.events.Types())
}

func TestPlaceOrderTotalsEveryLine(t *testing.T) {
	f := newFixture(t)
	o := f.place(t,
		orders.CartEntry{ProductID: "A", Quantity: 1},
		orders.CartEntry{ProductID: "B", Quantity: 2},
	)
	assert.Equal(t, "199.00", o.Total.StringFixed(2))
	require.Len(t, o.Items, 2)
	assert.Equal(t, []string{sellerA, sellerB}, o.SellerIDs())
}

func TestPlaceOrderValidation(t *testing.T) {
	tests := []struct {
		name     string
		cart     []orders.CartEntry
		shipping string
		want     []string
	}{
		{"empty cart", nil, "addr", []string{"Cart is empty."}},
		{"no shipping", []orders.CartEntry{{ProductID: "A", Quantity: 1}}, "   ", []string{"Shipping address required."}},
		{"insufficient stock", []orders.CartEntry{{ProductID: "A", Quantity: 6}}, "addr", []string{"'A' only has 5 left."}},
		{"unknown product", []orders.CartEntry{{ProductID: "Z", Quantity: 1}}, "addr", []string{"Product #Z not found."}},
		{
			"duplicate entries share stock",
			[]orders.CartEntry{{ProductID: "B", Quantity: 2}, {ProductID: "B", Quantity: 2}},
			"addr",
			[]string{"'B' only has 3 left."},
		},
		{
			"every message reported",
			[]orders.CartEntry{{ProductID: "Z", Quantity: 1}, {ProductID: "A", Quantity: 9}},
			"addr",
			[]string{"Product #Z not found.", "'A' only has 5 left."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.PlaceOrder(context.Background(), buyer, tt.cart, tt.shipping, "")
			assert.Equal(t, tt.want, validationMessages(t, err))
			assert.Zero(t, f.store.OrderCount())
			assert.Empty(t, f.store.AllLogs())
			assert.Empty(t, f.events.Events())
		})
	}
}

func TestPlaceOrderOutOfStockAndInactive(t *testing.T) {
	f := newFixture(t)
	f.store.AddProduct(orders.Product{ID: "C", SellerID: sellerA, Name: "C", Price: decimal.NewFromInt(1), Stock: 0, Active: true})
	f.store.AddProduct(orders.Product{ID: "D", SellerID: sellerA, Name: "D", Price: decimal.NewFromInt(1), Stock: 9, Active: false})

	_, err := f.svc.PlaceOrder(context.Background(), buyer, []orders.CartEntry{{ProductID: "C", Quantity: 1}, {ProductID: "D", Quantity: 1}}, "addr", "")
	assert.Equal(t, []string{"'C' is out of stock.", "Product #D not found."}, validationMessages(t, err))
}

func TestPlaceOrderQuantityFloorsAtOne(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 0})
	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "100.00", o.Total.StringFixed(2))
}

func TestPlaceOrderRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk full")
	f.store.Fail = func(op string) error {
		if op == "InsertLog" {
			return boom
		}
		return nil
	}
	_, err := f.svc.PlaceOrder(context.Background(), buyer, []orders.CartEntry{{ProductID: "A", Quantity: 1}}, "addr", "")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.store.OrderCount())
	assert.Empty(t, f.events.Events())
}

func TestHookFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.svc.AddHook("broken", orders.HookFunc(func(context.Context, orders.Event) error {
		return errors.New("smtp down")
	}))
	f.svc.AddHook("panics", orders.HookFunc(func(context.Context, orders.Event) error {
		panic("boom")
	}))
	after := &orderstest.Recorder{}
	f.svc.AddHook("after", after)

	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	assert.NotEmpty(t, o.ID)
	assert.Len(t, after.Events(), 1)
}

func TestHooksOutliveCancelledRequest(t *testing.T) {
	f := newFixture(t)
	var hookErr error
	f.svc.AddHook("ctx", orders.HookFunc(func(ctx context.Context, _ orders.Event) error {
		hookErr = ctx.Err()
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	o, err := f.svc.PlaceOrder(ctx, buyer, []orders.CartEntry{{ProductID: "A", Quantity: 1}}, "addr", "")
	require.NoError(t, err)
	cancel()
	_, err = f.svc.PayCashOnDelivery(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.NoError(t, hookErr)
}

func TestDetailAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	d, err := f.svc.Detail(ctx, orders.Viewer{UserID: buyer}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, d.Order.ID)
	assert.Len(t, d.Logs, 1)
	assert.Nil(t, d.Payment)
	assert.Equal(t, 1, d.Fulfillment.Total)

	_, err = f.svc.Detail(ctx, orders.Viewer{UserID: sellerA}, o.ID)
	assert.NoError(t, err)
	_, err = f.svc.Detail(ctx, orders.Viewer{UserID: "staff", Staff: true}, o.ID)
	assert.NoError(t, err)
	_, err = f.svc.Detail(ctx, orders.Viewer{UserID: sellerB}, o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = f.svc.Detail(ctx, orders.Viewer{UserID: buyer}, "missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestSellerReport(t *testing.T) {
	f := newFixture(t)
	f.place(t, orders.CartEntry{ProductID: "A", Quantity: 2}, orders.CartEntry{ProductID: "B", Quantity: 1})
	f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	r, err := f.svc.SellerReport(context.Background(), sellerA)
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalOrders)
	assert.Equal(t, 3, r.TotalItems)
	assert.Equal(t, "300.00", r.TotalRevenue.StringFixed(2))
	require.Len(t, r.Lines, 2)
	assert.Equal(t, "juan", r.Lines[0].BuyerName)
	assert.True(t, r.Lines[0].OrderedAt.After(r.Lines[1].OrderedAt))
}

func TestBuyerOrders(t *testing.T) {
	f := newFixture(t)
	first := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	second := f.place(t, orders.CartEntry{ProductID: "B", Quantity: 1})

	list, err := f.svc.BuyerOrders(context.Background(), buyer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Len(t, list[0].Items, 1)
}
