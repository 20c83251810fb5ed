package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/accounts"
	"github.com/bizconnect/marketplace/internal/media"
	"github.com/bizconnect/marketplace/internal/orders"
	"github.com/bizconnect/marketplace/internal/redisx"
)

// StatusReader serves cached order status; *redisx.StatusCache implements it.
type StatusReader interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, error)
}

// Idempotency maps a buyer's Idempotency-Key to an order; redisx.Idempotency
// implements it.
type Idempotency interface {
	Reserve(ctx context.Context, buyerID, key string) (orderID string, reserved bool, err error)
	Complete(ctx context.Context, buyerID, key, orderID string) error
	Release(ctx context.Context, buyerID, key string) error
}

type OrdersHandler struct {
	Orders *orders.Service
	Status StatusReader
	Idem   Idempotency
	Log    *zap.SugaredLogger
}

type CheckoutReq struct {
	Items           []orders.CartEntry `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

type CheckoutResp struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Total       string `json:"total"`
	Idempotent  bool   `json:"idempotent"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/payment/cod", h.payCOD)
	r.Post("/orders/{id}/payment/manual", h.payManual)
	r.Post("/orders/{id}/payment/stripe", h.payStripe)
}

// RegisterCallbacks mounts the processor return URLs. The buyer's browser
// comes back from Stripe without a token, so these run unauthenticated and
// rely on the stored checkout session instead.
func (h *OrdersHandler) RegisterCallbacks(r chi.Router) {
	r.Get("/orders/{id}/payment/stripe/success", h.stripeSuccess)
	r.Get("/orders/{id}/payment/stripe/cancel", h.stripeCancel)
}

func viewer(id accounts.Identity) orders.Viewer {
	return orders.Viewer{UserID: id.UserID, Staff: id.Role == accounts.RoleStaff}
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	buyer := identity(r).UserID
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	claimed := false
	if key != "" && h.Idem != nil {
		id, reserved, err := h.Idem.Reserve(ctx, buyer, key)
		switch {
		case err != nil:
			// redis down: place the order without replay protection
			h.Log.Warnw("idempotency reserve failed", "buyer_id", buyer, "error", err)
		case reserved:
			claimed = true
		case id == "":
			writeJSON(w, http.StatusConflict, errorBody{Error: "A request with this Idempotency-Key is still being processed."})
			return
		default:
			d, err := h.Orders.Detail(ctx, orders.Viewer{UserID: buyer}, id)
			if err != nil {
				writeError(w, r, h.Log, err)
				return
			}
			writeJSON(w, http.StatusOK, checkoutResp(d.Order, true))
			return
		}
	}

	o, err := h.Orders.PlaceOrder(ctx, buyer, req.Items, req.ShippingAddress, req.Notes)
	if err != nil {
		if claimed {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), buyer, key); rerr != nil {
				h.Log.Warnw("idempotency release failed", "buyer_id", buyer, "error", rerr)
			}
		}
		writeError(w, r, h.Log, err)
		return
	}
	if claimed {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), buyer, key, o.ID); err != nil {
			h.Log.Warnw("idempotency store failed", "order_id", o.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, checkoutResp(o, false))
}

func checkoutResp(o orders.Order, replay bool) CheckoutResp {
	return CheckoutResp{
		Success:     true,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Total:       o.Total.StringFixed(2),
		Idempotent:  replay,
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.BuyerOrders(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.Orders.Detail(r.Context(), viewer(identity(r)), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if h.Status == nil {
		st, err := h.Orders.Status(ctx, id)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, redisx.CachedStatus{OrderID: id, Status: st, Label: st.Label()})
		return
	}
	cs, err := h.Status.Get(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *OrdersHandler) payCOD(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.PayCashOnDelivery(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Order %s confirmed. Pay on delivery.", o.Number),
		"order":   o,
	})
}

func (h *OrdersHandler) payManual(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxProofBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}
	sub := orders.ProofSubmission{
		Method:     orders.PaymentMethod(r.FormValue("method")),
		Reference:  r.FormValue("reference_number"),
		SenderName: r.FormValue("sender_name"),
	}
	file, hdr, err := r.FormFile("proof_image")
	switch {
	case err == nil:
		defer file.Close()
		sub.Image, sub.Filename = file, hdr.Filename
	case !errors.Is(err, http.ErrMissingFile):
		badRequest(w, "invalid proof upload")
		return
	}

	p, err := h.Orders.SubmitPaymentProof(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), sub)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			badRequest(w, "Payment screenshot is too large.")
			return
		}
		if errors.Is(err, media.ErrUnsupportedType) {
			badRequest(w, "Upload a PNG, JPG, GIF or WEBP image.")
			return
		}
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment proof submitted. The seller will verify it shortly.",
		"payment": p,
	})
}

func (h *OrdersHandler) payStripe(w http.ResponseWriter, r *http.Request) {
	url, err := h.Orders.StartHostedCheckout(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "checkout_url": url})
}

func (h *OrdersHandler) stripeSuccess(w http.ResponseWriter, r *http.Request) {
	o, paid, err := h.Orders.CompleteHostedCheckout(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !paid {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "confirmed": false, "message": "Payment not yet confirmed."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"confirmed": true,
		"message":   fmt.Sprintf("Payment confirmed! Order %s is being processed.", o.Number),
	})
}

func (h *OrdersHandler) stripeCancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Orders.Status(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Stripe payment was cancelled."})
}
