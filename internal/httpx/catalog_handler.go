package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bizconnect/marketplace/internal/catalog"
)

type CatalogHandler struct {
	Catalog *catalog.Service
	Log     *zap.SugaredLogger
}

// RegisterPublic mounts the browsing routes that need no token.
func (h *CatalogHandler) RegisterPublic(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
}

// RegisterSeller mounts product management for the calling seller.
func (h *CatalogHandler) RegisterSeller(r chi.Router) {
	r.Get("/products", h.mine)
	r.Post("/products", h.create)
	r.Put("/products/{id}", h.update)
	r.Delete("/products/{id}", h.deactivate)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.Catalog.ListProducts(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if items == nil {
		items = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if !p.Active {
		writeError(w, r, h.Log, catalog.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) mine(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.SellerProducts(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if items == nil {
		items = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var in catalog.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), identity(r).UserID, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	var in catalog.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, err := h.Catalog.UpdateProduct(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Deactivate(r.Context(), identity(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
