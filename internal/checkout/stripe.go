// Package checkout is the hosted-checkout gateway backed by Stripe.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/orders"
)

// Sessions is the part of the Stripe checkout session client in use.
type Sessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Stripe implements orders.Checkout.
type Stripe struct {
	Sessions Sessions
	Currency string
	Log      *zap.SugaredLogger
}

func NewStripe(secretKey, currency string, log *zap.SugaredLogger) *Stripe {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{Sessions: sc.CheckoutSessions, Currency: currency, Log: log}
}

// minorUnits converts an amount to centavos.
func minorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func sessionParams(o orders.Order, currency, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	p := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		ClientReferenceID:  stripe.String(o.ID),
	}
	for _, it := range o.Items {
		if it.Status.Closed() {
			continue
		}
		p.LineItems = append(p.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.ProductName),
				},
				UnitAmount: stripe.Int64(minorUnits(it.UnitPrice)),
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}
	p.AddMetadata("order_id", o.ID)
	p.AddMetadata("order_number", o.Number)
	return p
}

func (s *Stripe) CreateSession(ctx context.Context, o orders.Order, successURL, cancelURL string) (orders.CheckoutSession, error) {
	params := sessionParams(o, s.Currency, successURL, cancelURL)
	if len(params.LineItems) == 0 {
		return orders.CheckoutSession{}, errors.New("order has no payable items")
	}
	params.Context = ctx
	sess, err := s.Sessions.New(params)
	if err != nil {
		return orders.CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return orders.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// VerifySession asks Stripe for the session's payment status and the order
// it was opened for. Lookup failures report CheckoutFailed.
func (s *Stripe) VerifySession(ctx context.Context, sessionID string) orders.SessionCheck {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.Sessions.Get(sessionID, params)
	if err != nil {
		if s.Log != nil {
			s.Log.Warnw("checkout session lookup failed", "session_id", sessionID, "error", err)
		}
		return orders.SessionCheck{Status: orders.CheckoutFailed}
	}
	check := orders.SessionCheck{Status: orders.CheckoutUnpaid, OrderID: sessionOrderID(sess)}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		check.Status = orders.CheckoutPaid
	}
	return check
}

// sessionOrderID reads the order reference set by sessionParams. The
// client reference and the metadata must agree.
func sessionOrderID(sess *stripe.CheckoutSession) string {
	ref := sess.ClientReferenceID
	if meta, ok := sess.Metadata["order_id"]; ok && meta != ref {
		return ""
	}
	return ref
}
