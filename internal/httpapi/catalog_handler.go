package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/littlecarts/internal/catalog"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _ := h.scope(r)
	defer cancel()

	q := r.URL.Query()
	products, err := h.catalog.List(ctx, catalog.Filter{Category: q.Get("category"), Query: q.Get("q")})
	if err != nil {
		h.fail(w, "failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _ := h.scope(r)
	defer cancel()

	p, err := h.catalog.Get(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		h.fail(w, "failed to load product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// formValue accepts a JSON string or number, as form posts send either.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = formValue(n.String())
	return nil
}

type uploadRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       formValue `json:"price"`
	Category    string    `json:"category"`
	Stock       formValue `json:"stock"`
	ImageURL    string    `json:"imageUrl"`
}

func (h *Handler) UploadProduct(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel, _ := h.scope(r)
	defer cancel()

	p, err := h.catalog.Upload(ctx, catalog.UploadRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       string(req.Price),
		Category:    req.Category,
		Stock:       string(req.Stock),
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		h.fail(w, "failed to upload product", err)
		return
	}
	w.Header().Set("Location", "/api/products/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) SetProductActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}

	ctx, cancel, _ := h.scope(r)
	defer cancel()

	p, err := h.catalog.SetActive(ctx, chi.URLParam(r, "productId"), *body.IsActive)
	if err != nil {
		h.fail(w, "failed to update product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
