package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/littlecarts/internal/store"
)

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Category string
	Query    string
}

// Repository reads and writes products in the document store.
type Repository struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

func NewRepository(s store.Store, logger *log.Logger) *Repository {
	return &Repository{
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// List returns products newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Product, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	category := strings.TrimSpace(f.Category)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		p := r.decode(doc)
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Category), query) {
			continue
		}
		products = append(products, p)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("load product: %w", err)
	}
	return r.decode(doc), nil
}

// Upload validates the form input and stores a new active product.
func (r *Repository) Upload(ctx context.Context, req UploadRequest) (Product, error) {
	v, err := req.validate()
	if err != nil {
		return Product{}, err
	}

	p := Product{
		ID:          r.newID(),
		Name:        v.name,
		Price:       v.price,
		Category:    v.category,
		Description: v.description,
		ImageURL:    v.imageURL,
		Stock:       v.stock,
		IsActive:    true,
		CreatedAt:   r.now(),
	}
	if err := r.store.Commit(ctx, store.PutIf(Collection, p.ID, Encode(p), 0)); err != nil {
		return Product{}, fmt.Errorf("save product: %w", err)
	}
	return p, nil
}

// SetActive toggles a product's availability. Products are never deleted.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) (Product, error) {
	err := r.store.Update(ctx, Collection, id, store.Fields{"isActive": active})
	if errors.Is(err, store.ErrNotFound) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *Repository) decode(doc store.Document) Product {
	p, issues := Decode(doc)
	for _, c := range issues {
		r.logger.Printf("product %s: coerced %s", doc.Key, c)
	}
	return p
}
