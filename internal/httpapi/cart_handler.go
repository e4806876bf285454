package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID := h.scope(r)
	defer cancel()

	c, err := h.carts.Get(ctx, userID)
	if err != nil {
		h.fail(w, "failed to load cart", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
		Quantity  *int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "productId is required", Fields: map[string]string{"productId": "is required"}})
		return
	}
	qty := 1
	if body.Quantity != nil {
		qty = *body.Quantity
	}

	ctx, cancel, userID := h.scope(r)
	defer cancel()

	c, err := h.carts.Add(ctx, userID, body.ProductID, qty)
	if err != nil {
		h.fail(w, "failed to add item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	ctx, cancel, userID := h.scope(r)
	defer cancel()

	c, err := h.carts.SetQuantity(ctx, userID, chi.URLParam(r, "productId"), *body.Quantity)
	if err != nil {
		h.fail(w, "failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID := h.scope(r)
	defer cancel()

	c, err := h.carts.Remove(ctx, userID, chi.URLParam(r, "productId"))
	if err != nil {
		h.fail(w, "failed to remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID := h.scope(r)
	defer cancel()

	c, err := h.carts.Clear(ctx, userID)
	if err != nil {
		h.fail(w, "failed to clear cart", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// StreamCart sends a server-sent "cart" event for the current cart and every later change.
func (h *Handler) StreamCart(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	carts, err := h.carts.Watch(ctx, h.identity.CurrentUserID(ctx))
	if err != nil {
		h.fail(w, "failed to watch cart", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-carts:
			if !ok {
				return
			}
			data, err := json.Marshal(c)
			if err != nil {
				h.logger.Printf("encode cart event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
