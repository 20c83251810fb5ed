package orders_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizconnect/marketplace/internal/orders"
)

func TestPayCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 2})

	got, err := f.svc.PayCashOnDelivery(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, got.Status)

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.MethodCOD, p.Method)
	assert.Equal(t, orders.PaymentPending, p.Status)
	assert.Equal(t, "200.00", p.Amount.StringFixed(2))

	logs, _ := f.store.Logs(ctx, o.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, orders.StatusPending, *logs[1].OldStatus)
	assert.Equal(t, orders.StatusConfirmed, logs[1].NewStatus)
	assert.Equal(t, "Payment method: Cash on Delivery.", logs[1].Note)

	evs := f.events.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, orders.EventPaymentRecorded, evs[1].Type)
	assert.Equal(t, orders.StatusConfirmed, evs[1].To)
}

func TestPayCashOnDeliveryDoesNotRegress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	f.store.SetOrderStatus(o.ID, orders.StatusShipped)

	got, err := f.svc.PayCashOnDelivery(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, got.Status)
	logs, _ := f.store.Logs(ctx, o.ID)
	assert.Len(t, logs, 1)
}

func TestPaymentOwnershipAndClosedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	_, err := f.svc.PayCashOnDelivery(ctx, "someone-else", o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = f.svc.StartHostedCheckout(ctx, "someone-else", o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	f.store.SetOrderStatus(o.ID, orders.StatusCancelled)
	_, err = f.svc.PayCashOnDelivery(ctx, buyer, o.ID)
	assert.ErrorIs(t, err, orders.ErrOrderClosed)
	_, err = f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Reference: "r", Image: strings.NewReader("x")})
	assert.ErrorIs(t, err, orders.ErrOrderClosed)
}

func TestSubmitPaymentProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	p, err := f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{
		Method:     orders.MethodBankTransfer,
		Reference:  " 0012-3456 ",
		SenderName: "Juan Cruz",
		Filename:   "receipt.png",
		Image:      strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentSubmitted, p.Status)
	assert.Equal(t, "0012-3456", p.ReferenceNumber)
	assert.NotEmpty(t, p.ProofPath)
	assert.Equal(t, []byte("png-bytes"), f.proofs.Saved[p.ProofPath])

	d, err := f.svc.Detail(ctx, orders.Viewer{UserID: buyer}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, d.Order.Status, "seller confirms manual payments")
	assert.Equal(t, orders.EventPaymentSubmitted, f.events.Types()[1])
}

func TestSubmitPaymentProofValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	_, err := f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Image: strings.NewReader("x")})
	assert.Equal(t, []string{"Reference number is required."}, validationMessages(t, err))

	_, err = f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Reference: "r"})
	assert.Equal(t, []string{"Please upload your payment screenshot."}, validationMessages(t, err))

	_, err = f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Method: orders.MethodStripe, Reference: "r", Image: strings.NewReader("x")})
	assert.Equal(t, []string{"Unsupported payment method."}, validationMessages(t, err))

	_, err = f.store.GetPayment(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestSubmitPaymentProofStorageFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	f.proofs.Err = errors.New("read-only fs")

	_, err := f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Reference: "r", Image: strings.NewReader("x")})
	require.Error(t, err)
	_, err = f.store.GetPayment(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestSubmitPaymentProofRemovesFileWhenNotRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	f.store.Fail = func(op string) error {
		if op == "UpsertPayment" {
			return assert.AnError
		}
		return nil
	}

	_, err := f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Reference: "r", Filename: "p.png", Image: strings.NewReader("x")})
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.proofs.Saved)
	assert.Equal(t, []string{"payment_proofs/" + o.ID + "_p.png"}, f.proofs.Removed)
}

func TestConfirmPaymentProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	_, err := f.svc.ConfirmPaymentProof(ctx, sellerA, o.ID)
	assert.ErrorIs(t, err, orders.ErrNoPayment)

	_, err = f.svc.SubmitPaymentProof(ctx, buyer, o.ID, orders.ProofSubmission{Reference: "r", Image: strings.NewReader("x")})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPaymentProof(ctx, sellerB, o.ID)
	assert.ErrorIs(t, err, orders.ErrNoSellerItems)

	got, err := f.svc.ConfirmPaymentProof(ctx, sellerA, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, got.Status)

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentConfirmed, p.Status)
	assert.NotNil(t, p.PaidAt)

	logs, _ := f.store.Logs(ctx, o.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, "Payment proof verified by seller.", logs[1].Note)

	// second confirmation changes nothing
	n := len(f.events.Events())
	_, err = f.svc.ConfirmPaymentProof(ctx, sellerA, o.ID)
	require.NoError(t, err)
	logs, _ = f.store.Logs(ctx, o.ID)
	assert.Len(t, logs, 2)
	assert.Len(t, f.events.Events(), n)
}

func TestConfirmPaymentProofRequiresSubmittedProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	_, err := f.svc.PayCashOnDelivery(ctx, buyer, o.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPaymentProof(ctx, sellerA, o.ID)
	assert.Equal(t, []string{"Payment has no submitted proof to confirm."}, validationMessages(t, err))
}

func TestHostedCheckoutPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})

	url, err := f.svc.StartHostedCheckout(ctx, buyer, o.ID)
	require.NoError(t, err)
	require.Len(t, f.checkout.Created, 1)
	sid := f.checkout.Created[0]
	assert.Equal(t, "https://checkout.test/"+sid, url)
	assert.Equal(t, "https://shop.test/api/orders/"+o.ID+"/payment/stripe/success?session_id={CHECKOUT_SESSION_ID}", f.checkout.Success)
	assert.Equal(t, "https://shop.test/api/orders/"+o.ID+"/payment/stripe/cancel", f.checkout.Cancel)

	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.MethodStripe, p.Method)
	assert.Equal(t, orders.PaymentPending, p.Status)
	assert.Equal(t, sid, p.CheckoutSessionID)

	f.checkout.Statuses[sid] = orders.CheckoutPaid
	got, paid, err := f.svc.CompleteHostedCheckout(ctx, o.ID, sid)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, orders.StatusConfirmed, got.Status)

	p, _ = f.store.GetPayment(ctx, o.ID)
	assert.Equal(t, orders.PaymentConfirmed, p.Status)
	assert.NotNil(t, p.PaidAt)

	logs, _ := f.store.Logs(ctx, o.ID)
	require.Len(t, logs, 2)
	assert.True(t, logs[1].Actor.IsSystem())
	assert.Equal(t, "Payment confirmed via Stripe.", logs[1].Note)
	assert.Equal(t, orders.StatusConfirmed, logs[1].NewStatus)

	// the buyer reloading the success page changes nothing
	_, paid, err = f.svc.CompleteHostedCheckout(ctx, o.ID, sid)
	require.NoError(t, err)
	assert.True(t, paid)
	logs, _ = f.store.Logs(ctx, o.ID)
	assert.Len(t, logs, 2)
	assert.Equal(t, 1, countType(f.events.Types(), orders.EventPaymentConfirmed))

	_, err = f.svc.StartHostedCheckout(ctx, buyer, o.ID)
	assert.Equal(t, []string{"Order is already paid."}, validationMessages(t, err))
}

func countType(types []orders.EventType, want orders.EventType) int {
	n := 0
	for _, typ := range types {
		if typ == want {
			n++
		}
	}
	return n
}

func TestHostedCheckoutRejectsSessionOfAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cheap := f.place(t, orders.CartEntry{ProductID: "B", Quantity: 1})
	dear := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 3})

	_, err := f.svc.StartHostedCheckout(ctx, buyer, cheap.ID)
	require.NoError(t, err)
	_, err = f.svc.StartHostedCheckout(ctx, buyer, dear.ID)
	require.NoError(t, err)
	require.Len(t, f.checkout.Created, 2)
	cheapSID, dearSID := f.checkout.Created[0], f.checkout.Created[1]
	f.checkout.Statuses[cheapSID] = orders.CheckoutPaid

	_, paid, err := f.svc.CompleteHostedCheckout(ctx, dear.ID, cheapSID)
	assert.False(t, paid)
	assert.Equal(t, []string{"Invalid payment session."}, validationMessages(t, err))

	p, err := f.store.GetPayment(ctx, dear.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, p.Status)
	assert.Equal(t, dearSID, p.CheckoutSessionID)
	got, _ := f.svc.Status(ctx, dear.ID)
	assert.Equal(t, orders.StatusPending, got)

	// a stored session the processor reports as opened for another order
	f.checkout.Statuses[dearSID] = orders.CheckoutPaid
	f.checkout.Opened[dearSID] = cheap.ID
	_, paid, err = f.svc.CompleteHostedCheckout(ctx, dear.ID, dearSID)
	assert.False(t, paid)
	assert.Equal(t, []string{"Invalid payment session."}, validationMessages(t, err))
	p, _ = f.store.GetPayment(ctx, dear.ID)
	assert.Equal(t, orders.PaymentPending, p.Status)

	// an order that never started hosted checkout
	cod := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	_, _, err = f.svc.CompleteHostedCheckout(ctx, cod.ID, cheapSID)
	assert.Equal(t, []string{"Invalid payment session."}, validationMessages(t, err))
}

func TestHostedCheckoutChargesOnlyOpenItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1}, orders.CartEntry{ProductID: "B", Quantity: 2})
	f.store.SetItemStatus(o.Items[1].ID, orders.StatusCancelled)

	_, err := f.svc.StartHostedCheckout(ctx, buyer, o.ID)
	require.NoError(t, err)
	p, err := f.store.GetPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", p.Amount.StringFixed(2))

	sid := f.checkout.Created[0]
	f.checkout.Statuses[sid] = orders.CheckoutPaid
	_, _, err = f.svc.CompleteHostedCheckout(ctx, o.ID, sid)
	require.NoError(t, err)
	p, _ = f.store.GetPayment(ctx, o.ID)
	assert.Equal(t, orders.PaymentConfirmed, p.Status)
	assert.Equal(t, "100.00", p.Amount.StringFixed(2))

	other := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	f.store.SetItemStatus(other.Items[0].ID, orders.StatusCancelled)
	_, err = f.svc.StartHostedCheckout(ctx, buyer, other.ID)
	assert.Equal(t, []string{"Order has nothing left to pay."}, validationMessages(t, err))
}

func TestHostedCheckoutUnpaidChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	_, err := f.svc.StartHostedCheckout(ctx, buyer, o.ID)
	require.NoError(t, err)
	sid := f.checkout.Created[0]

	for _, st := range []orders.CheckoutStatus{orders.CheckoutUnpaid, orders.CheckoutFailed} {
		f.checkout.Statuses[sid] = st
		_, paid, err := f.svc.CompleteHostedCheckout(ctx, o.ID, sid)
		require.NoError(t, err)
		assert.False(t, paid)
	}

	p, _ := f.store.GetPayment(ctx, o.ID)
	assert.Equal(t, orders.PaymentPending, p.Status)
	got, _ := f.svc.Status(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, got)

	_, _, err = f.svc.CompleteHostedCheckout(ctx, o.ID, "")
	assert.Equal(t, []string{"Invalid payment session."}, validationMessages(t, err))
}

func TestHostedCheckoutProcessorFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, orders.CartEntry{ProductID: "A", Quantity: 1})
	f.checkout.CreateErr = errors.New("api down")

	_, err := f.svc.StartHostedCheckout(ctx, buyer, o.ID)
	var cerr *orders.CheckoutError
	require.ErrorAs(t, err, &cerr)

	_, err = f.store.GetPayment(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
