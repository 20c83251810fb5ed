package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizconnect/marketplace/internal/accounts"
	"github.com/bizconnect/marketplace/internal/mailer"
	"github.com/bizconnect/marketplace/internal/orders"
)

// Users resolves user ids; accounts.Directory implements it.
type Users interface {
	Lookup(ctx context.Context, id string) (accounts.User, error)
}

// Notices creates notifications; *Inbox implements it.
type Notices interface {
	Create(ctx context.Context, n Notice) (Notice, error)
}

// Dispatcher turns committed order events into notifications and emails.
// It is an orders.Hook. Every failure is logged and swallowed, so it always
// returns nil.
type Dispatcher struct {
	Notices Notices
	Users   Users
	Mail    mailer.Mailer
	Log     *zap.SugaredLogger
}

func orderLink(o orders.Order) string { return fmt.Sprintf("/shop/order/%s/", o.ID) }

const sellerOrdersLink = "/shop/seller/orders/"

func (d *Dispatcher) logger() *zap.SugaredLogger {
	if d.Log == nil {
		return zap.NewNop().Sugar()
	}
	return d.Log
}

func (d *Dispatcher) AfterCommit(ctx context.Context, ev orders.Event) error {
	switch ev.Type {
	case orders.EventOrderPlaced:
		d.orderPlaced(ctx, ev)
	case orders.EventPaymentSubmitted:
		d.toSellers(ctx, ev, fmt.Sprintf("Payment proof submitted for order %s.", ev.Order.Number))
	case orders.EventPaymentConfirmed:
		msg := fmt.Sprintf("Your payment for order %s has been confirmed!", ev.Order.Number)
		if ev.Actor.IsSystem() {
			msg = fmt.Sprintf("Stripe payment confirmed for order %s!", ev.Order.Number)
		}
		d.notify(ctx, ev, ev.Order.BuyerID, msg, orderLink(ev.Order))
	case orders.EventItemStatusChanged:
		d.itemChanged(ctx, ev)
	}
	return nil
}

func (d *Dispatcher) orderPlaced(ctx context.Context, ev orders.Event) {
	o := ev.Order
	d.notify(ctx, ev, o.BuyerID, fmt.Sprintf("Order %s placed! Total: %s", o.Number, mailer.Peso(o.Total)), orderLink(o))

	buyer, ok := d.lookup(ctx, o.BuyerID, o.ID)
	name := o.BuyerID
	if ok {
		name = buyer.Username
	}
	d.toSellers(ctx, ev, fmt.Sprintf("New order %s from %s.", o.Number, name))

	if ok && buyer.Email != "" {
		if err := d.Mail.SendInvoice(ctx, recipient(buyer), o); err != nil {
			d.logger().Warnw("invoice email failed", "order_id", o.ID, "error", err)
		}
	}
}

func (d *Dispatcher) itemChanged(ctx context.Context, ev orders.Event) {
	if ev.Item == nil {
		return
	}
	o := ev.Order
	msg := fmt.Sprintf("Order %s: %s is now %s.", o.Number, ev.Item.ProductName, ev.To)
	d.notify(ctx, ev, o.BuyerID, msg, orderLink(o))

	buyer, ok := d.lookup(ctx, o.BuyerID, o.ID)
	if !ok || buyer.Email == "" {
		return
	}
	if err := d.Mail.SendOrderUpdate(ctx, recipient(buyer), o, ev.To); err != nil {
		d.logger().Warnw("order update email failed", "order_id", o.ID, "error", err)
	}
}

// toSellers sends one notice per distinct seller of the order.
func (d *Dispatcher) toSellers(ctx context.Context, ev orders.Event, msg string) {
	var g errgroup.Group
	g.SetLimit(4)
	for _, sellerID := range ev.Order.SellerIDs() {
		sellerID := sellerID
		g.Go(func() error {
			d.notify(ctx, ev, sellerID, msg, sellerOrdersLink)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) notify(ctx context.Context, ev orders.Event, recipientID, msg, link string) {
	n := Notice{RecipientID: recipientID, Type: TypeOrder, Message: msg, Link: link}
	if id, ok := ev.Actor.UserID(); ok {
		n.ActorID = &id
	}
	if _, err := d.Notices.Create(ctx, n); err != nil {
		d.logger().Warnw("notification failed", "order_id", ev.Order.ID, "event", ev.Type, "recipient_id", recipientID, "error", err)
	}
}

func (d *Dispatcher) lookup(ctx context.Context, userID, orderID string) (accounts.User, bool) {
	if d.Users == nil {
		return accounts.User{}, false
	}
	u, err := d.Users.Lookup(ctx, userID)
	if err != nil {
		d.logger().Warnw("user lookup failed", "order_id", orderID, "user_id", userID, "error", err)
		return accounts.User{}, false
	}
	return u, true
}

func recipient(u accounts.User) mailer.Recipient {
	return mailer.Recipient{Name: u.DisplayName(), Email: u.Email}
}
