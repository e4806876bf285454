package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andreasstove999/littlecarts/internal/cart"
	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/order"
	"github.com/andreasstove999/littlecarts/internal/store"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps a service error onto a status code. label names the operation that failed.
func (h *Handler) fail(w http.ResponseWriter, label string, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: label, Details: "validation failed", Fields: verr.Fields})
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: label, Details: err.Error(), Fields: map[string]string{"quantity": err.Error()}})
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, order.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: label, Details: err.Error()})
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrProductUnavailable),
		errors.Is(err, cart.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: label, Details: err.Error()})
	default:
		h.logger.Printf("%s: %v", label, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: label, Details: err.Error()})
	}
}
