package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Checkout is the hosted payment processor. The service only ever keeps the
// opaque session id.
type Checkout interface {
	CreateSession(ctx context.Context, o Order, successURL, cancelURL string) (CheckoutSession, error)
	VerifySession(ctx context.Context, sessionID string) SessionCheck
}

// SessionCheck is the processor's answer for one session. OrderID is the
// order reference the session was opened with.
type SessionCheck struct {
	Status  CheckoutStatus
	OrderID string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type CheckoutStatus string

const (
	CheckoutPaid   CheckoutStatus = "paid"
	CheckoutUnpaid CheckoutStatus = "unpaid"
	CheckoutFailed CheckoutStatus = "error"
)

// ProofStore keeps uploaded proof-of-payment images and returns their path.
type ProofStore interface {
	SaveProof(ctx context.Context, orderID, filename string, r io.Reader) (string, error)
	RemoveProof(ctx context.Context, path string) error
}

type Service struct {
	Store    Store
	Checkout Checkout
	Proofs   ProofStore
	Log      *zap.SugaredLogger
	// SiteURL prefixes hosted-checkout return URLs.
	SiteURL string
	Clock   func() time.Time

	hooks []namedHook
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.NewNop().Sugar()
	}
	return s.Log
}

// PlaceOrder validates cart against live catalog state and persists the
// order, its items and the placement log atomically. Stock is checked but
// not reserved. On any invalid entry nothing is written and every message
// is returned in a *ValidationError.
func (s *Service) PlaceOrder(ctx context.Context, buyerID string, cart []CartEntry, shipping, notes string) (Order, error) {
	if len(cart) == 0 {
		return Order{}, invalid("Cart is empty.")
	}
	shipping = strings.TrimSpace(shipping)
	if shipping == "" {
		return Order{}, invalid("Shipping address required.")
	}

	ids := make([]string, 0, len(cart))
	seen := map[string]bool{}
	for _, ce := range cart {
		if !seen[ce.ProductID] {
			seen[ce.ProductID] = true
			ids = append(ids, ce.ProductID)
		}
	}

	var order Order
	err := s.Store.InTx(ctx, func(q Queries) error {
		products, err := q.ActiveProducts(ctx, ids)
		if err != nil {
			return err
		}

		now := s.now()
		order = Order{
			ID:              uuid.NewString(),
			Number:          NewOrderNumber(),
			BuyerID:         buyerID,
			Status:          StatusPending,
			Total:           decimal.Zero,
			ShippingAddress: shipping,
			Notes:           strings.TrimSpace(notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		var msgs []string
		requested := map[string]int{}
		for _, ce := range cart {
			p, ok := products[ce.ProductID]
			if !ok {
				msgs = append(msgs, fmt.Sprintf("Product #%s not found.", ce.ProductID))
				continue
			}
			qty := max(ce.Quantity, 1)
			// duplicate entries of one product draw on the same stock
			if p.Stock < requested[p.ID]+qty {
				if p.Stock == 0 {
					msgs = append(msgs, fmt.Sprintf("'%s' is out of stock.", p.Name))
				} else {
					msgs = append(msgs, fmt.Sprintf("'%s' only has %d left.", p.Name, p.Stock))
				}
				continue
			}
			requested[p.ID] += qty

			pid := p.ID
			it := OrderItem{
				ID:          uuid.NewString(),
				OrderID:     order.ID,
				Line:        len(order.Items) + 1,
				ProductID:   &pid,
				SellerID:    p.SellerID,
				ProductName: p.Name,
				UnitPrice:   p.Price,
				Quantity:    qty,
				Status:      StatusPending,
			}
			order.Items = append(order.Items, it)
			order.Total = order.Total.Add(it.Subtotal())
		}
		if len(msgs) > 0 {
			return invalid(msgs...)
		}
		if len(order.Items) == 0 {
			return invalid("No valid products in cart.")
		}

		if err := q.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range order.Items {
			if err := q.InsertItem(ctx, it); err != nil {
				return fmt.Errorf("insert item %s: %w", it.ProductName, err)
			}
		}
		return q.InsertLog(ctx, StatusLog{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			Actor:     UserActor(buyerID),
			NewStatus: StatusPending,
			Note:      "Order placed by buyer.",
			CreatedAt: now,
		})
	})
	if err != nil {
		return Order{}, err
	}

	s.logger().Infow("order placed", "order_id", order.ID, "order_number", order.Number, "buyer_id", buyerID, "total", order.Total.StringFixed(2))
	s.dispatch(ctx, Event{Type: EventOrderPlaced, Actor: UserActor(buyerID), Order: order, To: StatusPending})
	return order, nil
}

// Viewer is the identity reading an order.
type Viewer struct {
	UserID string
	Staff  bool
}

// Detail returns the order with logs, payment and fulfillment summary. Only
// the buyer, a seller with items in it, or staff may see it; anyone else
// gets ErrNotFound.
func (s *Service) Detail(ctx context.Context, v Viewer, orderID string) (Detail, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	if !v.Staff && o.BuyerID != v.UserID && !o.HasSeller(v.UserID) {
		return Detail{}, ErrNotFound
	}
	logs, err := s.Store.Logs(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Order: o, Logs: logs, Fulfillment: Summarize(o.Items)}
	p, err := s.Store.GetPayment(ctx, orderID)
	switch {
	case err == nil:
		d.Payment = &p
	case !errors.Is(err, ErrNotFound):
		return Detail{}, err
	}
	return d, nil
}

// Status returns the current aggregate status of an order.
func (s *Service) Status(ctx context.Context, orderID string) (Status, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *Service) BuyerOrders(ctx context.Context, buyerID string) ([]Order, error) {
	return s.Store.BuyerOrders(ctx, buyerID)
}

func (s *Service) SellerLines(ctx context.Context, sellerID string) ([]SellerLine, error) {
	return s.Store.SellerLines(ctx, sellerID)
}

type SellerReport struct {
	TotalOrders  int             `json:"total_orders"`
	TotalItems   int             `json:"total_items"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Lines        []SellerLine    `json:"lines"`
}

func (s *Service) SellerReport(ctx context.Context, sellerID string) (SellerReport, error) {
	lines, err := s.Store.SellerLines(ctx, sellerID)
	if err != nil {
		return SellerReport{}, err
	}
	r := SellerReport{TotalRevenue: decimal.Zero, Lines: lines}
	orders := map[string]bool{}
	for _, l := range lines {
		orders[l.Item.OrderID] = true
		r.TotalItems += l.Item.Quantity
		r.TotalRevenue = r.TotalRevenue.Add(l.Item.Subtotal())
	}
	r.TotalOrders = len(orders)
	return r, nil
}

func (s *Service) appendLog(ctx context.Context, q Queries, orderID string, actor Actor, from *Status, to Status, note string) error {
	return q.InsertLog(ctx, StatusLog{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Actor:     actor,
		OldStatus: from,
		NewStatus: to,
		Note:      note,
		CreatedAt: s.now(),
	})
}
