package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/andreasstove999/littlecarts/internal/cart"
	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/identity"
	"github.com/andreasstove999/littlecarts/internal/order"
)

const defaultRequestTimeout = 3 * time.Second

type Handler struct {
	catalog  *catalog.Repository
	carts    *cart.Service
	orders   *order.Service
	identity identity.Provider
	logger   *log.Logger
	timeout  time.Duration
}

func NewHandler(d Deps) *Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	provider := d.Identity
	if provider == nil {
		provider = identity.ContextProvider{}
	}
	return &Handler{
		catalog:  d.Catalog,
		carts:    d.Carts,
		orders:   d.Orders,
		identity: provider,
		logger:   d.Logger,
		timeout:  timeout,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// scope bounds a request's store round-trips and resolves the acting user.
func (h *Handler) scope(r *http.Request) (context.Context, context.CancelFunc, string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	return ctx, cancel, h.identity.CurrentUserID(r.Context())
}
