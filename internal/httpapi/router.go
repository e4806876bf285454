package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/andreasstove999/littlecarts/internal/cart"
	"github.com/andreasstove999/littlecarts/internal/catalog"
	"github.com/andreasstove999/littlecarts/internal/identity"
	"github.com/andreasstove999/littlecarts/internal/order"
)

type Deps struct {
	Logger         *log.Logger
	Catalog        *catalog.Repository
	Carts          *cart.Service
	Orders         *order.Service
	Identity       identity.Provider
	RequestTimeout time.Duration
	// CORSAllowOrigins defaults to every origin.
	CORSAllowOrigins []string
}

func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)

	origins := d.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(CORS(origins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: d.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(CorrelationID)
	r.Use(identity.Middleware)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.UploadProduct)
			r.Get("/{productId}", h.GetProduct)
			r.Patch("/{productId}", h.SetProductActive)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/stream", h.StreamCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{productId}", h.SetItemQuantity)
			r.Delete("/items/{productId}", h.RemoveItem)
		})

		r.Post("/checkout", h.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Get("/{orderId}", h.GetOrder)
		})
	})

	return r
}
