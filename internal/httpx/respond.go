package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/catalog"
	"github.com/bizconnect/marketplace/internal/notify"
	"github.com/bizconnect/marketplace/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps domain errors onto status codes. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger, err error) {
	var (
		verr *orders.ValidationError
		cerr *orders.CheckoutError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Errors: verr.Messages})
	case errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, catalog.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, notify.ErrNotFound), errors.Is(err, orders.ErrNoPayment):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrNotOwner), errors.Is(err, orders.ErrNoSellerItems), errors.Is(err, catalog.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrConflict), errors.Is(err, orders.ErrOrderClosed):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &cerr):
		log.Warnw("checkout processor error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Payment provider error. Please try again."})
	default:
		log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
