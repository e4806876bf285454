package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID := h.scope(r)
	defer cancel()

	o, err := h.orders.Checkout(ctx, userID)
	if err != nil {
		h.fail(w, "failed to check out", err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	ctx, cancel, userID := h.scope(r)
	defer cancel()

	orders, err := h.orders.History(ctx, userID, limit)
	if err != nil {
		h.fail(w, "failed to list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID := h.scope(r)
	defer cancel()

	o, err := h.orders.Get(ctx, userID, chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "failed to load order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
