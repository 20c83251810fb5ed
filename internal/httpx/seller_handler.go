package httpx

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/orders"
)

// ProofFiles opens stored proof images; media.Disk implements it.
type ProofFiles interface {
	Open(rel string) (*os.File, error)
}

// SellerHandler serves the seller dashboard routes mounted under /api/seller.
type SellerHandler struct {
	Orders *orders.Service
	Proofs ProofFiles
	Log    *zap.SugaredLogger
}

type itemStatusReq struct {
	Status string `json:"status"`
}

func (h *SellerHandler) Register(r chi.Router) {
	r.Get("/orders", h.lines)
	r.Post("/orders/{id}/confirm-payment", h.confirmPayment)
	r.Get("/orders/{id}/proof", h.proof)
	r.Post("/items/{id}/status", h.itemStatus)
	r.Get("/reports", h.report)
}

func (h *SellerHandler) lines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Orders.SellerLines(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if lines == nil {
		lines = []orders.SellerLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *SellerHandler) itemStatus(w http.ResponseWriter, r *http.Request) {
	var req itemStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	up, err := h.Orders.UpdateItemStatus(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"item_status":   up.Item.Status,
		"order_status":  up.Order.Status,
		"changed":       up.Changed,
		"order_changed": up.OrderChanged,
		"message":       fmt.Sprintf("%s marked as %s.", up.Item.ProductName, up.Item.Status.Label()),
	})
}

func (h *SellerHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.ConfirmPaymentProof(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"order_status": o.Status,
		"message":      fmt.Sprintf("Payment for order %s confirmed.", o.Number),
	})
}

// proof streams the buyer's uploaded screenshot to a seller of the order.
func (h *SellerHandler) proof(w http.ResponseWriter, r *http.Request) {
	me := identity(r).UserID
	d, err := h.Orders.Detail(r.Context(), orders.Viewer{UserID: me}, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !d.Order.HasSeller(me) {
		writeError(w, r, h.Log, orders.ErrNoSellerItems)
		return
	}
	if d.Payment == nil || d.Payment.ProofPath == "" || h.Proofs == nil {
		writeError(w, r, h.Log, orders.ErrNoPayment)
		return
	}
	f, err := h.Proofs.Open(d.Payment.ProofPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, r, h.Log, orders.ErrNotFound)
			return
		}
		writeError(w, r, h.Log, err)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	http.ServeContent(w, r, path.Base(d.Payment.ProofPath), st.ModTime(), f)
}

var reportHeader = []string{"Order Number", "Buyer", "Product", "Qty", "Unit Price", "Subtotal", "Status", "Date"}

func (h *SellerHandler) report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Orders.SellerReport(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if r.URL.Query().Get("download") != "csv" {
		if rep.Lines == nil {
			rep.Lines = []orders.SellerLine{}
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales_report.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(reportHeader)
	for _, l := range rep.Lines {
		buyer := l.BuyerName
		if buyer == "" {
			buyer = l.BuyerID
		}
		_ = cw.Write([]string{
			l.OrderNumber,
			buyer,
			l.Item.ProductName,
			strconv.Itoa(l.Item.Quantity),
			l.Item.UnitPrice.StringFixed(2),
			l.Item.Subtotal().StringFixed(2),
			l.Item.Status.Label(),
			l.OrderedAt.Format("2006-01-02 15:04"),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.Log.Warnw("report csv write", "error", err)
	}
}
