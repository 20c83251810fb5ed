package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/notify"
)

// Inbox is the recipient-scoped notification store; *notify.Inbox
// implements it.
type Inbox interface {
	List(ctx context.Context, recipientID string, limit int) ([]notify.Notice, error)
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Unread(ctx context.Context, recipientID string) (int64, error)
}

type NotificationsHandler struct {
	Inbox Inbox
	Log   *zap.SugaredLogger
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Get("/notifications", h.list)
	r.Get("/notifications/unread", h.unread)
	r.Post("/notifications/read-all", h.readAll)
	r.Post("/notifications/{id}/read", h.read)
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	me := identity(r).UserID
	items, err := h.Inbox.List(r.Context(), me, limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if items == nil {
		items = []notify.Notice{}
	}
	unread, err := h.Inbox.Unread(r.Context(), me)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items, "unread_count": unread})
}

func (h *NotificationsHandler) unread(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inbox.Unread(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread_count": n})
}

func (h *NotificationsHandler) read(w http.ResponseWriter, r *http.Request) {
	if err := h.Inbox.MarkRead(r.Context(), identity(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *NotificationsHandler) readAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inbox.MarkAllRead(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "marked": n})
}
