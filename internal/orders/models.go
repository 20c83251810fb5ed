package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"seller_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"is_active"`
}

type Order struct {
	ID              string          `json:"id"`
	Number          string          `json:"order_number"`
	BuyerID         string          `json:"buyer_id"`
	Status          Status          `json:"status"`
	Total           decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// SellerIDs returns the distinct sellers of the order's items in item order.
func (o Order) SellerIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	var out []string
	for _, it := range o.Items {
		if it.SellerID == "" || seen[it.SellerID] {
			continue
		}
		seen[it.SellerID] = true
		out = append(out, it.SellerID)
	}
	return out
}

// PayableTotal sums the items that are neither cancelled nor refunded; it is
// what a processor is asked to charge.
func (o Order) PayableTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		if !it.Status.Closed() {
			total = total.Add(it.Subtotal())
		}
	}
	return total
}

func (o Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// OrderItem snapshots name and unit price at purchase time. ProductID is nil
// once the product is deleted.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Line        int             `json:"line"`
	ProductID   *string         `json:"product_id"`
	SellerID    string          `json:"seller_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Status      Status          `json:"status"`
	ShippedAt   *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// StatusLog is an append-only audit entry. OldStatus is nil for placement.
type StatusLog struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Actor     Actor     `json:"changed_by"`
	OldStatus *Status   `json:"old_status"`
	NewStatus Status    `json:"new_status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentMethod string

const (
	MethodCOD          PaymentMethod = "cod"
	MethodGCash        PaymentMethod = "gcash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodStripe       PaymentMethod = "stripe"
)

// Manual reports whether the method is confirmed by uploaded proof.
func (m PaymentMethod) Manual() bool {
	return m == MethodGCash || m == MethodBankTransfer
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSubmitted PaymentStatus = "submitted"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	OrderID           string          `json:"order_id"`
	Method            PaymentMethod   `json:"method"`
	Status            PaymentStatus   `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	ReferenceNumber   string          `json:"reference_number,omitempty"`
	SenderName        string          `json:"sender_name,omitempty"`
	ProofPath         string          `json:"proof_image,omitempty"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CartEntry is one client-supplied cart line; prices are never taken from
// the client.
type CartEntry struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Detail is the full view of one order.
type Detail struct {
	Order       Order       `json:"order"`
	Logs        []StatusLog `json:"logs"`
	Payment     *Payment    `json:"payment,omitempty"`
	Fulfillment Fulfillment `json:"fulfillment"`
}

// SellerLine is one of a seller's sold items joined with its order.
type SellerLine struct {
	Item        OrderItem `json:"item"`
	OrderNumber string    `json:"order_number"`
	BuyerID     string    `json:"buyer_id"`
	BuyerName   string    `json:"buyer_name"`
	OrderedAt   time.Time `json:"ordered_at"`
}
