package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ProofSubmission is a buyer's out-of-band payment evidence.
type ProofSubmission struct {
	Method     PaymentMethod
	Reference  string
	SenderName string
	Filename   string
	Image      io.Reader
}

// buyerOrder locks the order and checks it belongs to buyerID and is still
// payable.
func buyerOrder(ctx context.Context, q Queries, buyerID, orderID string) (Order, error) {
	o, err := q.LockOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.BuyerID != buyerID {
		return Order{}, ErrNotFound
	}
	if o.Status.Closed() {
		return Order{}, ErrOrderClosed
	}
	return o, nil
}

// promote moves a pending order to confirmed and logs it. Orders already
// past pending keep their status; false means nothing was written.
func (s *Service) promote(ctx context.Context, q Queries, o *Order, actor Actor, note string) (bool, error) {
	if o.Status != StatusPending {
		return false, nil
	}
	from := o.Status
	o.Status = StatusConfirmed
	o.UpdatedAt = s.now()
	if err := q.UpdateOrderStatus(ctx, *o); err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	if err := s.appendLog(ctx, q, o.ID, actor, &from, StatusConfirmed, note); err != nil {
		return false, err
	}
	return true, nil
}

func paymentEvent(typ EventType, actor Actor, o Order, p Payment, promoted bool) Event {
	ev := Event{Type: typ, Actor: actor, Order: o, Payment: &p}
	if promoted {
		ev.From, ev.To = StatusPending, StatusConfirmed
	}
	return ev
}

// PayCashOnDelivery records a pending COD payment and confirms the order.
func (s *Service) PayCashOnDelivery(ctx context.Context, buyerID, orderID string) (Order, error) {
	var ev Event
	err := s.Store.InTx(ctx, func(q Queries) error {
		o, err := buyerOrder(ctx, q, buyerID, orderID)
		if err != nil {
			return err
		}
		p := Payment{
			OrderID:   o.ID,
			Method:    MethodCOD,
			Status:    PaymentPending,
			Amount:    o.PayableTotal(),
			UpdatedAt: s.now(),
		}
		if err := q.UpsertPayment(ctx, p); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		promoted, err := s.promote(ctx, q, &o, UserActor(buyerID), "Payment method: Cash on Delivery.")
		if err != nil {
			return err
		}
		ev = paymentEvent(EventPaymentRecorded, UserActor(buyerID), o, p, promoted)
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.dispatch(ctx, ev)
	return ev.Order, nil
}

// SubmitPaymentProof stores a manual payment proof and marks the payment
// submitted. The order status is left for the seller to confirm.
func (s *Service) SubmitPaymentProof(ctx context.Context, buyerID, orderID string, sub ProofSubmission) (Payment, error) {
	if sub.Method == "" {
		sub.Method = MethodGCash
	}
	if !sub.Method.Manual() {
		return Payment{}, invalid("Unsupported payment method.")
	}
	ref := strings.TrimSpace(sub.Reference)
	if ref == "" {
		return Payment{}, invalid("Reference number is required.")
	}
	if sub.Image == nil {
		return Payment{}, invalid("Please upload your payment screenshot.")
	}
	if s.Proofs == nil {
		return Payment{}, errors.New("proof storage is not configured")
	}

	var (
		ev   Event
		path string
	)
	err := s.Store.InTx(ctx, func(q Queries) error {
		o, err := buyerOrder(ctx, q, buyerID, orderID)
		if err != nil {
			return err
		}
		path, err = s.Proofs.SaveProof(ctx, o.ID, sub.Filename, sub.Image)
		if err != nil {
			return fmt.Errorf("save proof: %w", err)
		}
		p := Payment{
			OrderID:         o.ID,
			Method:          sub.Method,
			Status:          PaymentSubmitted,
			Amount:          o.PayableTotal(),
			ReferenceNumber: ref,
			SenderName:      strings.TrimSpace(sub.SenderName),
			ProofPath:       path,
			UpdatedAt:       s.now(),
		}
		if err := q.UpsertPayment(ctx, p); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		ev = paymentEvent(EventPaymentSubmitted, UserActor(buyerID), o, p, false)
		return nil
	})
	if err != nil {
		if path != "" {
			if rerr := s.Proofs.RemoveProof(context.WithoutCancel(ctx), path); rerr != nil {
				s.logger().Warnw("orphaned payment proof", "order_id", orderID, "path", path, "error", rerr)
			}
		}
		return Payment{}, err
	}
	s.dispatch(ctx, ev)
	return *ev.Payment, nil
}

// StartHostedCheckout opens a processor session for the order and returns
// the URL to send the buyer to. Processor failures leave everything as it
// was and come back as *CheckoutError.
func (s *Service) StartHostedCheckout(ctx context.Context, buyerID, orderID string) (string, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.BuyerID != buyerID {
		return "", ErrNotFound
	}
	if o.Status.Closed() {
		return "", ErrOrderClosed
	}
	if !o.PayableTotal().IsPositive() {
		return "", invalid("Order has nothing left to pay.")
	}
	switch p, err := s.Store.GetPayment(ctx, o.ID); {
	case err == nil && p.Status == PaymentConfirmed:
		return "", invalid("Order is already paid.")
	case err != nil && !errors.Is(err, ErrNotFound):
		return "", err
	}
	if s.Checkout == nil {
		return "", &CheckoutError{Err: errors.New("hosted checkout is not configured")}
	}

	base := fmt.Sprintf("%s/api/orders/%s/payment/stripe", strings.TrimRight(s.SiteURL, "/"), o.ID)
	sess, err := s.Checkout.CreateSession(ctx, o, base+"/success?session_id={CHECKOUT_SESSION_ID}", base+"/cancel")
	if err != nil {
		s.logger().Errorw("checkout session failed", "order_id", o.ID, "error", err)
		return "", &CheckoutError{Err: err}
	}

	var ev Event
	err = s.Store.InTx(ctx, func(q Queries) error {
		o, err := buyerOrder(ctx, q, buyerID, orderID)
		if err != nil {
			return err
		}
		p := Payment{
			OrderID:           o.ID,
			Method:            MethodStripe,
			Status:            PaymentPending,
			Amount:            o.PayableTotal(),
			CheckoutSessionID: sess.ID,
			UpdatedAt:         s.now(),
		}
		if err := q.UpsertPayment(ctx, p); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		ev = paymentEvent(EventPaymentRecorded, UserActor(buyerID), o, p, false)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.dispatch(ctx, ev)
	return sess.URL, nil
}

// CompleteHostedCheckout handles the processor's success redirect, which
// arrives without buyer credentials. The session id must be the one stored
// on the order's payment, and the processor must report it paid and opened
// for this order; only then are the payment and the order confirmed. false
// with a nil error means not yet paid. Revisiting a confirmed session is a
// no-op that reports true.
func (s *Service) CompleteHostedCheckout(ctx context.Context, orderID, sessionID string) (Order, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Order{}, false, invalid("Invalid payment session.")
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, false, err
	}
	p, err := s.Store.GetPayment(ctx, o.ID)
	if errors.Is(err, ErrNotFound) {
		return Order{}, false, invalid("Invalid payment session.")
	}
	if err != nil {
		return Order{}, false, err
	}
	if !ownsSession(p, sessionID) {
		s.logger().Warnw("checkout session does not belong to order", "order_id", o.ID, "session_id", sessionID)
		return Order{}, false, invalid("Invalid payment session.")
	}
	if p.Status == PaymentConfirmed {
		return o, true, nil
	}
	if s.Checkout == nil {
		return Order{}, false, &CheckoutError{Err: errors.New("hosted checkout is not configured")}
	}

	check := s.Checkout.VerifySession(ctx, sessionID)
	if check.Status != CheckoutPaid {
		s.logger().Infow("checkout session not paid", "order_id", o.ID, "session_status", check.Status)
		return o, false, nil
	}
	if check.OrderID != o.ID {
		s.logger().Warnw("checkout session opened for another order", "order_id", o.ID, "session_order_id", check.OrderID)
		return Order{}, false, invalid("Invalid payment session.")
	}

	var ev *Event
	err = s.Store.InTx(ctx, func(q Queries) error {
		locked, err := q.LockOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		o = locked
		p, err := q.GetPayment(ctx, o.ID)
		if err != nil {
			return err
		}
		// a newer session may have replaced this one since the check above
		if !ownsSession(p, sessionID) {
			return invalid("Invalid payment session.")
		}
		if p.Status == PaymentConfirmed {
			return nil
		}
		now := s.now()
		p.Status = PaymentConfirmed
		p.PaidAt = &now
		p.UpdatedAt = now
		if err := q.UpsertPayment(ctx, p); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		promoted, err := s.promote(ctx, q, &o, SystemActor(), "Payment confirmed via Stripe.")
		if err != nil {
			return err
		}
		e := paymentEvent(EventPaymentConfirmed, SystemActor(), o, p, promoted)
		ev = &e
		return nil
	})
	if err != nil {
		return Order{}, false, err
	}
	if ev != nil {
		s.dispatch(ctx, *ev)
	}
	return o, true, nil
}

func ownsSession(p Payment, sessionID string) bool {
	return p.Method == MethodStripe && p.CheckoutSessionID == sessionID
}

// ConfirmPaymentProof lets a seller with items in the order accept the
// buyer's submitted proof. Confirming an already confirmed payment is a
// no-op.
func (s *Service) ConfirmPaymentProof(ctx context.Context, sellerID, orderID string) (Order, error) {
	var (
		order Order
		ev    *Event
	)
	err := s.Store.InTx(ctx, func(q Queries) error {
		o, err := q.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.HasSeller(sellerID) {
			return ErrNoSellerItems
		}
		p, err := q.GetPayment(ctx, o.ID)
		if errors.Is(err, ErrNotFound) {
			return ErrNoPayment
		}
		if err != nil {
			return err
		}
		order = o
		if p.Status == PaymentConfirmed {
			return nil
		}
		if !p.Method.Manual() || p.Status != PaymentSubmitted {
			return invalid("Payment has no submitted proof to confirm.")
		}

		now := s.now()
		p.Status = PaymentConfirmed
		p.PaidAt = &now
		p.UpdatedAt = now
		if err := q.UpsertPayment(ctx, p); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		promoted, err := s.promote(ctx, q, &o, UserActor(sellerID), "Payment proof verified by seller.")
		if err != nil {
			return err
		}
		order = o
		e := paymentEvent(EventPaymentConfirmed, UserActor(sellerID), o, p, promoted)
		ev = &e
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if ev != nil {
		s.dispatch(ctx, *ev)
	}
	return order, nil
}
